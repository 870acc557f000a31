package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

type userRepository struct {
	db     *userTable
	grades *gradeTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user, grades: db.grade}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, u)
	}
	return users
}

func (repo *userRepository) emailTaken(email string, excludedIDs map[string]bool) bool {
	for _, usr := range repo.db.table {
		if usr.Email == email && !excludedIDs[usr.ID] {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	if repo.emailTaken(email, excluded) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.emailTaken(usr.Email, nil) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.table[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) CreateUsers(_ context.Context, usrs ...user.User) ([]user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	seen := make(map[string]bool, len(usrs))
	for _, usr := range usrs {
		if seen[usr.Email] || repo.emailTaken(usr.Email, nil) {
			return nil, user.ErrEmailExists
		}
		seen[usr.Email] = true
	}
	for _, usr := range usrs {
		repo.db.table[usr.ID] = usr
	}
	return usrs, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	roles := make(map[user.Role]bool, len(filter.Roles))
	for _, r := range filter.Roles {
		roles[r] = true
	}

	users := make([]user.User, 0)
	for _, usr := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.FirstName), search) &&
			!strings.Contains(strings.ToLower(usr.LastName), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		if len(roles) > 0 && !roles[usr.Role] {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if filter.CourseID != "" && usr.CourseID != filter.CourseID {
			continue
		}
		users = append(users, usr)
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.table[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.table {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) ListByCourse(_ context.Context, courseID string) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.table {
		if usr.Role == user.RoleStudent && usr.CourseID == courseID {
			users = append(users, usr)
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return user.NameLess(users[i], users[j]) })
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, map[string]bool{usr.ID: true}) {
		return user.User{}, user.ErrEmailExists
	}
	// role & creation time never change
	usr.Role = orig.Role
	usr.CreatedAt = orig.CreatedAt
	repo.db.table[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.grades.Lock()
	defer repo.grades.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(repo.db.table, id)
		deleted[id] = true
	}
	for id, g := range repo.grades.table {
		if deleted[g.StudentID] {
			delete(repo.grades.table, id)
		}
	}
	return nil
}

func userField(u user.User, field string) string {
	switch field {
	case "first_name":
		return strings.ToLower(u.FirstName)
	case "last_name":
		return strings.ToLower(u.LastName)
	case "email":
		return u.Email
	case "role":
		return string(u.Role)
	case "created_at":
		return u.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	case "last_login":
		return u.LastLogin.UTC().Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if user.SortableFields[ord.Field] {
			ords = append(ords, ord)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ords {
			a, b := userField(users[i], ord.Field), userField(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return user.NameLess(users[i], users[j])
	})
}

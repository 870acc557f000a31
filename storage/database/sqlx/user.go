package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

const (
	userColumns = `id, first_name, last_name, email, password_hash, role, class_label, course_id,
		profile_picture_url, is_active, created_at, updated_at, last_login`
	userEmailKey = "users_email_key"
)

type userRow struct {
	ID                string      `db:"id"`
	FirstName         string      `db:"first_name"`
	LastName          string      `db:"last_name"`
	Email             string      `db:"email"`
	PasswordHash      []byte      `db:"password_hash"`
	Role              string      `db:"role"`
	ClassLabel        null.String `db:"class_label"`
	CourseID          null.String `db:"course_id"`
	ProfilePictureURL null.String `db:"profile_picture_url"`
	IsActive          bool        `db:"is_active"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
	LastLogin         null.Time   `db:"last_login"`
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:                usr.ID,
		FirstName:         usr.FirstName,
		LastName:          usr.LastName,
		Email:             usr.Email,
		PasswordHash:      usr.PasswordHash,
		Role:              string(usr.Role),
		ClassLabel:        null.NewString(usr.ClassLabel, usr.ClassLabel != ""),
		CourseID:          null.NewString(usr.CourseID, usr.CourseID != ""),
		ProfilePictureURL: null.NewString(usr.ProfilePictureURL, usr.ProfilePictureURL != ""),
		IsActive:          usr.IsActive,
		CreatedAt:         usr.CreatedAt.UTC(),
		UpdatedAt:         usr.UpdatedAt.UTC(),
		LastLogin:         null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:                row.ID,
		FirstName:         row.FirstName,
		LastName:          row.LastName,
		Email:             row.Email,
		PasswordHash:      row.PasswordHash,
		Role:              user.Role(row.Role),
		ClassLabel:        row.ClassLabel.String,
		CourseID:          row.CourseID.String,
		ProfilePictureURL: row.ProfilePictureURL.String,
		IsActive:          row.IsActive,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
		LastLogin:         row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.fromRow(r))
	}
	return users
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := "SELECT EXISTS (SELECT 1 FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	q += ")"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) insert(ctx context.Context, exec core.DBExecutor, usr user.User) error {
	q := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :first_name, :last_name, :email, :password_hash, :role, :class_label, :course_id,
		:profile_picture_url, :is_active, :created_at, :updated_at, :last_login)`
	if _, err := exec.NamedExecContext(ctx, q, repo.toRow(usr)); err != nil {
		if isUniqueViolation(err, userEmailKey) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "inserting user")
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.insert(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) CreateUsers(ctx context.Context, usrs ...user.User) ([]user.User, error) {
	err := core.RunInTx(ctx, repo.db, func(exec core.DBExecutor) error {
		for _, usr := range usrs {
			if err := repo.insert(ctx, exec, usr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usrs, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	// users with FirstName, LastName or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds = append(conds, "(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)")
		args = append(args, val, val, val)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		conds = append(conds, "role IN (?)")
		args = append(args, roles)
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if filter.CourseID != "" {
		if !validUUID(filter.CourseID) {
			return []user.User{}, nil
		}
		conds = append(conds, "course_id = ?")
		args = append(args, filter.CourseID)
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, user.SortableFields, "lower(last_name), lower(first_name), id")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	rows := make([]userRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		q   = "SELECT " + userColumns + " FROM users WHERE "
		arg interface{}
	)
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q += "id = ?"
		arg = filter.ID
	case filter.Email != "":
		q += "email = ?"
		arg = filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) ListByCourse(ctx context.Context, courseID string) ([]user.User, error) {
	if !validUUID(courseID) {
		return []user.User{}, nil
	}
	q := "SELECT " + userColumns + ` FROM users WHERE role = ? AND course_id = ?
		ORDER BY lower(last_name), lower(first_name), id`
	rows := make([]userRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), string(user.RoleStudent), courseID); err != nil {
		return nil, errors.Wrap(err, "listing course students")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET first_name = :first_name, last_name = :last_name, email = :email,
		password_hash = :password_hash, class_label = :class_label, course_id = :course_id,
		profile_picture_url = :profile_picture_url, is_active = :is_active, updated_at = :updated_at,
		last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.toRow(usr))
	if err != nil {
		if isUniqueViolation(err, userEmailKey) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/gradebook/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func sortAssignments(as []assignment.Assignment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].DueDate.Equal(as[j].DueDate) {
			return as[i].DueDate.Before(as[j].DueDate)
		}
		if as[i].Title != as[j].Title {
			return as[i].Title < as[j].Title
		}
		return as[i].ID < as[j].ID
	})
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	a, ok := repo.db.table[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (repo *assignmentRepository) ListByCourse(_ context.Context, courseID string) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	as := make([]assignment.Assignment, 0)
	for _, a := range repo.db.table {
		if a.CourseID == courseID {
			as = append(as, a)
		}
	}
	sortAssignments(as)
	return as, nil
}

func (repo *assignmentRepository) ListOverdueUnresolved(_ context.Context, now time.Time) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	as := make([]assignment.Assignment, 0)
	for _, a := range repo.db.table {
		if a.Status == assignment.StatusUnset && a.DueDate.Before(now) {
			as = append(as, a)
		}
	}
	sortAssignments(as)
	return as, nil
}

func (repo *assignmentRepository) ResolveStatus(_ context.Context, id string, status assignment.Status, at time.Time) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a, ok := repo.db.table[id]
	if !ok || a.Status != assignment.StatusUnset {
		return false, nil
	}
	a.Status = status
	a.UpdatedAt = at.UTC()
	repo.db.table[id] = a
	return true, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

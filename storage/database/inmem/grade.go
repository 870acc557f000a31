package inmemdb

import (
	"context"

	"github.com/trezcool/gradebook/core/grade"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db.grade}
}

// findSlot returns the ID of the grade occupying the slot of g, if any.
// Grades without an assignment never occupy a slot.
func (repo *gradeRepository) findSlot(g grade.Grade) (string, bool) {
	if g.Assignment == "" {
		return "", false
	}
	key := g.Key()
	for id, existing := range repo.db.table {
		if id != g.ID && existing.Key() == key {
			return id, true
		}
	}
	return "", false
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, taken := repo.findSlot(g); taken {
		return grade.Grade{}, grade.ErrDuplicate
	}
	repo.db.table[g.ID] = g
	return g, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, id string) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	g, ok := repo.db.table[id]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	return g, nil
}

func (repo *gradeRepository) list(keep func(g grade.Grade) bool) []grade.Grade {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := make([]grade.Grade, 0)
	for _, g := range repo.db.table {
		if keep(g) {
			grades = append(grades, g)
		}
	}
	grade.SortRecentFirst(grades)
	return grades
}

func (repo *gradeRepository) ListByStudent(_ context.Context, studentID string) ([]grade.Grade, error) {
	return repo.list(func(g grade.Grade) bool { return g.StudentID == studentID }), nil
}

func (repo *gradeRepository) ListByStudents(_ context.Context, studentIDs ...string) ([]grade.Grade, error) {
	ids := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		ids[id] = true
	}
	return repo.list(func(g grade.Grade) bool { return ids[g.StudentID] }), nil
}

func (repo *gradeRepository) ListByCourse(_ context.Context, courseID string) ([]grade.Grade, error) {
	return repo.list(func(g grade.Grade) bool { return g.CourseID == courseID }), nil
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[g.ID]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	if _, taken := repo.findSlot(g); taken {
		return grade.Grade{}, grade.ErrDuplicate
	}
	g.StudentID = orig.StudentID
	g.CourseID = orig.CourseID
	g.CreatedAt = orig.CreatedAt
	repo.db.table[g.ID] = g
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return grade.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *gradeRepository) UpsertGrades(_ context.Context, grades ...grade.Grade) ([]grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	saved := make([]grade.Grade, 0, len(grades))
	for _, g := range grades {
		if id, taken := repo.findSlot(g); taken {
			existing := repo.db.table[id]
			g.ID = existing.ID
			g.CreatedAt = existing.CreatedAt
			g.Feedback = existing.Feedback
		}
		repo.db.table[g.ID] = g
		saved = append(saved, g)
	}
	return saved, nil
}

package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/course"
)

const courseColumns = "id, name, description, subjects, school_year, teacher_id, created_at, updated_at"

type courseRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Subjects    pq.StringArray `db:"subjects"`
	SchoolYear  string         `db:"school_year"`
	TeacherID   string         `db:"teacher_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db core.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo courseRepository) toRow(c course.Course) courseRow {
	subjects := c.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return courseRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Subjects:    pq.StringArray(subjects),
		SchoolYear:  c.SchoolYear,
		TeacherID:   c.TeacherID,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromRow(row courseRow) course.Course {
	subjects := []string(row.Subjects)
	if subjects == nil {
		subjects = []string{}
	}
	return course.Course{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Subjects:    subjects,
		SchoolYear:  row.SchoolYear,
		TeacherID:   row.TeacherID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromRows(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, repo.fromRow(r))
	}
	return courses
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :name, :description, :subjects, :school_year, :teacher_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.toRow(c)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.fromRow(repo.toRow(c)), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validUUID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	q := repo.db.Rebind("SELECT " + courseColumns + " FROM courses WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return repo.fromRow(row), nil
}

func (repo courseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	if !validUUID(teacherID) {
		return []course.Course{}, nil
	}
	rows := make([]courseRow, 0)
	q := repo.db.Rebind("SELECT " + courseColumns + " FROM courses WHERE teacher_id = ? ORDER BY lower(name), id")
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "listing teacher courses")
	}
	return repo.fromRows(rows), nil
}

func (repo courseRepository) ListCourses(ctx context.Context) ([]course.Course, error) {
	rows := make([]courseRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+courseColumns+" FROM courses ORDER BY lower(name), id"); err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	return repo.fromRows(rows), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `UPDATE courses SET name = :name, description = :description, subjects = :subjects,
		school_year = :school_year, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.toRow(c))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = checkAffected(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validUUID(id) {
		return course.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, course.ErrNotFound)
}

package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
)

const assignmentColumns = `id, title, description, type, due_date, assigned_date, status, course_id, teacher_id,
	created_at, updated_at`

type assignmentRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	Type         string      `db:"type"`
	DueDate      time.Time   `db:"due_date"`
	AssignedDate time.Time   `db:"assigned_date"`
	Status       null.String `db:"status"`
	CourseID     string      `db:"course_id"`
	TeacherID    string      `db:"teacher_id"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

type assignmentRepository struct {
	db core.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db core.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) toRow(a assignment.Assignment) assignmentRow {
	return assignmentRow{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Type:         string(a.Type),
		DueDate:      a.DueDate.UTC(),
		AssignedDate: a.AssignedDate.UTC(),
		Status:       null.NewString(string(a.Status), a.Status.Resolved()),
		CourseID:     a.CourseID,
		TeacherID:    a.TeacherID,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) fromRow(row assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Type:         assignment.Type(row.Type),
		DueDate:      row.DueDate.UTC(),
		AssignedDate: row.AssignedDate.UTC(),
		Status:       assignment.Status(row.Status.String),
		CourseID:     row.CourseID,
		TeacherID:    row.TeacherID,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) fromRows(rows []assignmentRow) []assignment.Assignment {
	as := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, repo.fromRow(r))
	}
	return as
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	q := `INSERT INTO assignments (` + assignmentColumns + `) VALUES (
		:id, :title, :description, :type, :due_date, :assigned_date, :status, :course_id, :teacher_id,
		:created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.toRow(a)); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validUUID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var row assignmentRow
	q := repo.db.Rebind("SELECT " + assignmentColumns + " FROM assignments WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment")
	}
	return repo.fromRow(row), nil
}

func (repo assignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	if !validUUID(courseID) {
		return []assignment.Assignment{}, nil
	}
	rows := make([]assignmentRow, 0)
	q := repo.db.Rebind("SELECT " + assignmentColumns + " FROM assignments WHERE course_id = ? ORDER BY due_date, title")
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "listing course assignments")
	}
	return repo.fromRows(rows), nil
}

func (repo assignmentRepository) ListOverdueUnresolved(ctx context.Context, now time.Time) ([]assignment.Assignment, error) {
	rows := make([]assignmentRow, 0)
	q := repo.db.Rebind("SELECT " + assignmentColumns + " FROM assignments WHERE status IS NULL AND due_date < ? ORDER BY due_date")
	if err := repo.db.SelectContext(ctx, &rows, q, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "listing overdue assignments")
	}
	return repo.fromRows(rows), nil
}

func (repo assignmentRepository) ResolveStatus(ctx context.Context, id string, status assignment.Status, at time.Time) (bool, error) {
	if !validUUID(id) {
		return false, nil
	}
	q := repo.db.Rebind("UPDATE assignments SET status = ?, updated_at = ? WHERE id = ? AND status IS NULL")
	res, err := repo.db.ExecContext(ctx, q, string(status), at.UTC(), id)
	if err != nil {
		return false, errors.Wrap(err, "resolving assignment status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading affected rows")
	}
	return n == 1, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !validUUID(id) {
		return assignment.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM assignments WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return checkAffected(res, assignment.ErrNotFound)
}

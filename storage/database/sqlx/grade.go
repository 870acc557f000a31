package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
)

const (
	gradeColumns = `id, student_id, course_id, subject, letter, type, assignment, teacher_id, feedback, graded_at,
		created_at, updated_at`
	gradeSlotKey = "grades_slot_uniq"
)

type gradeRow struct {
	ID         string      `db:"id"`
	StudentID  string      `db:"student_id"`
	CourseID   string      `db:"course_id"`
	Subject    string      `db:"subject"`
	Letter     null.String `db:"letter"`
	Type       string      `db:"type"`
	Assignment string      `db:"assignment"`
	TeacherID  string      `db:"teacher_id"`
	Feedback   string      `db:"feedback"`
	GradedAt   time.Time   `db:"graded_at"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

type gradeRepository struct {
	db core.DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db core.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo gradeRepository) toRow(g grade.Grade) gradeRow {
	return gradeRow{
		ID:         g.ID,
		StudentID:  g.StudentID,
		CourseID:   g.CourseID,
		Subject:    g.Subject,
		Letter:     null.NewString(string(g.Letter), g.Letter != grade.LetterNone),
		Type:       string(g.Type),
		Assignment: g.Assignment,
		TeacherID:  g.TeacherID,
		Feedback:   g.Feedback,
		GradedAt:   g.GradedAt.UTC(),
		CreatedAt:  g.CreatedAt.UTC(),
		UpdatedAt:  g.UpdatedAt.UTC(),
	}
}

func (repo gradeRepository) fromRow(row gradeRow) grade.Grade {
	return grade.Grade{
		ID:         row.ID,
		StudentID:  row.StudentID,
		CourseID:   row.CourseID,
		Subject:    row.Subject,
		Letter:     grade.Letter(row.Letter.String),
		Type:       grade.Type(row.Type),
		Assignment: row.Assignment,
		TeacherID:  row.TeacherID,
		Feedback:   row.Feedback,
		GradedAt:   row.GradedAt.UTC(),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func (repo gradeRepository) fromRows(rows []gradeRow) []grade.Grade {
	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, repo.fromRow(r))
	}
	return grades
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `INSERT INTO grades (` + gradeColumns + `) VALUES (
		:id, :student_id, :course_id, :subject, :letter, :type, :assignment, :teacher_id, :feedback, :graded_at,
		:created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.toRow(g)); err != nil {
		if isUniqueViolation(err, gradeSlotKey) {
			return grade.Grade{}, grade.ErrDuplicate
		}
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo gradeRepository) GetGrade(ctx context.Context, id string) (grade.Grade, error) {
	if !validUUID(id) {
		return grade.Grade{}, grade.ErrNotFound
	}
	var row gradeRow
	q := repo.db.Rebind("SELECT " + gradeColumns + " FROM grades WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return repo.fromRow(row), nil
}

func (repo gradeRepository) ListByStudent(ctx context.Context, studentID string) ([]grade.Grade, error) {
	if !validUUID(studentID) {
		return []grade.Grade{}, nil
	}
	rows := make([]gradeRow, 0)
	q := repo.db.Rebind("SELECT " + gradeColumns + " FROM grades WHERE student_id = ? ORDER BY graded_at DESC, id")
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "listing student grades")
	}
	return repo.fromRows(rows), nil
}

func (repo gradeRepository) ListByStudents(ctx context.Context, studentIDs ...string) ([]grade.Grade, error) {
	studentIDs = validUUIDs(studentIDs)
	if len(studentIDs) == 0 {
		return []grade.Grade{}, nil
	}
	q, args, err := sqlx.In("SELECT "+gradeColumns+" FROM grades WHERE student_id IN (?) ORDER BY graded_at DESC, id", studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building grades query")
	}
	rows := make([]gradeRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing grades")
	}
	return repo.fromRows(rows), nil
}

func (repo gradeRepository) ListByCourse(ctx context.Context, courseID string) ([]grade.Grade, error) {
	if !validUUID(courseID) {
		return []grade.Grade{}, nil
	}
	rows := make([]gradeRow, 0)
	q := repo.db.Rebind("SELECT " + gradeColumns + " FROM grades WHERE course_id = ? ORDER BY graded_at DESC, id")
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "listing course grades")
	}
	return repo.fromRows(rows), nil
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `UPDATE grades SET subject = :subject, letter = :letter, type = :type, assignment = :assignment,
		teacher_id = :teacher_id, feedback = :feedback, graded_at = :graded_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.toRow(g))
	if err != nil {
		if isUniqueViolation(err, gradeSlotKey) {
			return grade.Grade{}, grade.ErrDuplicate
		}
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	if err = checkAffected(res, grade.ErrNotFound); err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id string) error {
	if !validUUID(id) {
		return grade.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM grades WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return checkAffected(res, grade.ErrNotFound)
}

func (repo gradeRepository) UpsertGrades(ctx context.Context, grades ...grade.Grade) ([]grade.Grade, error) {
	q := repo.db.Rebind(`INSERT INTO grades (` + gradeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, course_id, subject, assignment) WHERE assignment <> ''
		DO UPDATE SET letter = EXCLUDED.letter, type = EXCLUDED.type, teacher_id = EXCLUDED.teacher_id,
			graded_at = EXCLUDED.graded_at, updated_at = EXCLUDED.updated_at
		RETURNING ` + gradeColumns)

	saved := make([]grade.Grade, 0, len(grades))
	err := core.RunInTx(ctx, repo.db, func(exec core.DBExecutor) error {
		for _, g := range grades {
			r := repo.toRow(g)
			var row gradeRow
			err := exec.GetContext(ctx, &row, q,
				r.ID, r.StudentID, r.CourseID, r.Subject, r.Letter, r.Type, r.Assignment, r.TeacherID, r.Feedback,
				r.GradedAt, r.CreatedAt, r.UpdatedAt)
			if err != nil {
				return errors.Wrapf(err, "upserting grade of student %s", g.StudentID)
			}
			saved = append(saved, repo.fromRow(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

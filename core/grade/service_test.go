package grade_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
	testutil "github.com/trezcool/gradebook/tests"
)

type fixture struct {
	env      *testutil.Env
	teacher  user.User
	other    user.User
	course   course.Course
	students []user.User
	outsider user.User
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	f := fixture{env: env}
	f.teacher = testutil.CreateUser(t, env.UserRepo, "Jane", "Doe", "jane@test.cd", "", user.RoleTeacher, "")
	f.other = testutil.CreateUser(t, env.UserRepo, "John", "Roe", "john@test.cd", "", user.RoleTeacher, "")
	f.course = testutil.CreateCourse(t, env.CourseRepo, "6B", f.teacher.ID, "Math", "English")
	for _, name := range []string{"Amani", "Bahati", "Chance"} {
		f.students = append(f.students,
			testutil.CreateUser(t, env.UserRepo, name, "Student", name+"@test.cd", "", user.RoleStudent, f.course.ID))
	}
	f.outsider = testutil.CreateUser(t, env.UserRepo, "Zawadi", "Other", "zawadi@test.cd", "", user.RoleStudent, "")
	return f
}

func fieldMap(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a ValidationError, got %v", err)
	return vErr.FieldMap()
}

func TestService_BulkSave(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	bg := grade.BulkGrades{
		CourseID:   f.course.ID,
		Assignment: "Quiz 1",
		Subject:    "Math",
		Type:       grade.TypeTest,
		Date:       date,
		Entries: map[string]string{
			f.students[0].ID: "EXCELLENT",
			f.students[1].ID: "4",
			f.students[2].ID: " ",
		},
	}
	saved, err := f.env.GradeSvc.BulkSave(ctx, f.teacher.ID, bg)
	require.NoError(t, err)
	require.Len(t, saved, 2, "blank entries are skipped")
	for _, g := range saved {
		assert.Equal(t, "Math", g.Subject)
		assert.Equal(t, "Quiz 1", g.Assignment)
		assert.Equal(t, grade.TypeTest, g.Type)
		assert.Equal(t, f.course.ID, g.CourseID)
		assert.Equal(t, f.teacher.ID, g.TeacherID)
		assert.True(t, date.Equal(g.GradedAt))
	}

	all, err := f.env.GradeSvc.ListByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	t.Run("resave upserts", func(t *testing.T) {
		first, err := f.env.GradeSvc.ListByStudent(ctx, f.students[0].ID)
		require.NoError(t, err)
		require.Len(t, first, 1)
		_, err = f.env.GradeSvc.UpdateFeedback(ctx, f.teacher.ID, first[0].ID, grade.UpdateFeedback{Feedback: "Great job"})
		require.NoError(t, err)

		bg.Entries = map[string]string{f.students[0].ID: "bad", f.students[2].ID: "very good"}
		saved, err := f.env.GradeSvc.BulkSave(ctx, f.teacher.ID, bg)
		require.NoError(t, err)
		require.Len(t, saved, 2)

		all, err := f.env.GradeSvc.ListByCourse(ctx, f.course.ID)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		got, err := f.env.GradeSvc.GetByID(ctx, first[0].ID)
		require.NoError(t, err)
		assert.Equal(t, grade.LetterBad, got.Letter)
		assert.Equal(t, "Great job", got.Feedback)
	})

	t.Run("invalid entries fail the whole batch", func(t *testing.T) {
		before, err := f.env.GradeSvc.ListByCourse(ctx, f.course.ID)
		require.NoError(t, err)

		bad := bg
		bad.Assignment = "Quiz 2"
		bad.Entries = map[string]string{
			f.students[0].ID: "GOOD",
			f.students[1].ID: "A+",
			f.outsider.ID:    "GOOD",
		}
		_, err = f.env.GradeSvc.BulkSave(ctx, f.teacher.ID, bad)
		flds := fieldMap(t, err)
		assert.Len(t, flds, 2)
		assert.Contains(t, flds, "entries["+f.students[1].ID+"]")
		assert.Contains(t, flds, "entries["+f.outsider.ID+"]")

		after, err := f.env.GradeSvc.ListByCourse(ctx, f.course.ID)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("not the course owner", func(t *testing.T) {
		_, err := f.env.GradeSvc.BulkSave(ctx, f.other.ID, bg)
		assert.Equal(t, grade.ErrNotCourseOwner, err)
	})

	t.Run("unknown subject", func(t *testing.T) {
		bad := bg
		bad.Subject = "Physics"
		_, err := f.env.GradeSvc.BulkSave(ctx, f.teacher.ID, bad)
		assert.Contains(t, fieldMap(t, err), "subject")
	})

	t.Run("missing metadata", func(t *testing.T) {
		_, err := f.env.GradeSvc.BulkSave(ctx, f.teacher.ID, grade.BulkGrades{CourseID: f.course.ID})
		flds := fieldMap(t, err)
		assert.Contains(t, flds, "assignment")
		assert.Contains(t, flds, "subject")
		assert.Contains(t, flds, "type")
	})
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := f.students[0]

	ng := grade.NewGrade{
		StudentID:  student.ID,
		CourseID:   f.course.ID,
		Subject:    "English",
		Letter:     "good",
		Type:       "oral",
		Assignment: "Reading",
	}
	g, err := f.env.GradeSvc.Create(ctx, f.teacher.ID, ng)
	require.NoError(t, err)
	assert.Equal(t, grade.LetterGood, g.Letter)
	assert.Equal(t, grade.TypeOral, g.Type)
	assert.False(t, g.GradedAt.IsZero())

	tests := []struct {
		name      string
		teacherID string
		mutate    func(ng *grade.NewGrade)
		wantErr   error
		wantField string
	}{
		{name: "duplicate slot", teacherID: f.teacher.ID, wantField: "assignment"},
		{name: "not owner", teacherID: f.other.ID, mutate: func(ng *grade.NewGrade) { ng.Assignment = "x" }, wantErr: grade.ErrNotCourseOwner},
		{name: "not enrolled", teacherID: f.teacher.ID, mutate: func(ng *grade.NewGrade) { ng.StudentID = f.outsider.ID }, wantField: "student_id"},
		{name: "invalid letter", teacherID: f.teacher.ID, mutate: func(ng *grade.NewGrade) { ng.Letter = "A+" }, wantField: "letter"},
		{name: "invalid type", teacherID: f.teacher.ID, mutate: func(ng *grade.NewGrade) { ng.Type = "nap" }, wantField: "type"},
		{name: "unknown course", teacherID: f.teacher.ID, mutate: func(ng *grade.NewGrade) { ng.CourseID = "lol" }, wantErr: course.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ng
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := f.env.GradeSvc.Create(ctx, tt.teacherID, in)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.Contains(t, fieldMap(t, err), tt.wantField)
		})
	}

	t.Run("ungraded records may share an empty assignment", func(t *testing.T) {
		in := ng
		in.Assignment = ""
		in.Letter = ""
		_, err := f.env.GradeSvc.Create(ctx, f.teacher.ID, in)
		require.NoError(t, err)
		_, err = f.env.GradeSvc.Create(ctx, f.teacher.ID, in)
		require.NoError(t, err)
	})
}

func TestService_UpdateDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	g := testutil.CreateGrade(t, f.env.GradeRepo, grade.Grade{
		StudentID: f.students[0].ID,
		CourseID:  f.course.ID,
		Subject:   "Math",
		Letter:    grade.LetterAverage,
		TeacherID: f.teacher.ID,
	})

	letter := "6"
	got, err := f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Letter: &letter, Subject: "English"})
	require.NoError(t, err)
	assert.Equal(t, grade.LetterExcellent, got.Letter)
	assert.Equal(t, "English", got.Subject)
	assert.Equal(t, g.CreatedAt, got.CreatedAt)

	_, err = f.env.GradeSvc.Update(ctx, f.other.ID, g.ID, grade.UpdateGrade{Letter: &letter})
	assert.Equal(t, grade.ErrNotCourseOwner, err)

	got, err = f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Type: " exam "})
	require.NoError(t, err)
	assert.Equal(t, grade.TypeExam, got.Type)
	assert.Equal(t, grade.LetterExcellent, got.Letter, "letter untouched")

	_, err = f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Type: "nap"})
	assert.Contains(t, fieldMap(t, err), "type")

	bad := "A+"
	_, err = f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Letter: &bad})
	assert.Contains(t, fieldMap(t, err), "letter")

	blank := " "
	got, err = f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Letter: &blank})
	require.NoError(t, err)
	assert.Equal(t, grade.LetterNone, got.Letter, "blank letter clears the grade")
	stored, err := f.env.GradeSvc.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, grade.LetterNone, stored.Letter)

	_, err = f.env.GradeSvc.Update(ctx, f.teacher.ID, g.ID, grade.UpdateGrade{Subject: "Physics"})
	assert.Contains(t, fieldMap(t, err), "subject")

	assert.Equal(t, grade.ErrNotCourseOwner, f.env.GradeSvc.Delete(ctx, f.other.ID, g.ID))
	require.NoError(t, f.env.GradeSvc.Delete(ctx, f.teacher.ID, g.ID))
	_, err = f.env.GradeSvc.GetByID(ctx, g.ID)
	assert.Equal(t, grade.ErrNotFound, errors.Cause(err))
}

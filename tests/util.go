package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/services/cache/inmemcache"
	emailsvc "github.com/trezcool/gradebook/services/email"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
)

// Env is a fully wired set of services over the in-memory store.
type Env struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Attendance *AttendanceClientMock

	UserRepo       user.Repository
	CourseRepo     course.Repository
	AssignmentRepo assignment.Repository
	GradeRepo      grade.Repository
	Cache          assignment.Cache

	UserSvc       user.Service
	CourseSvc     course.Service
	AssignmentSvc assignment.Service
	GradeSvc      grade.Service
	AttendanceSvc attendance.Service
	DashboardSvc  dashboard.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	logger := core.NewNopLogger()

	env := &Env{
		Conf:           conf,
		Validate:       validate,
		Translator:     translator,
		Mail:           emailsvc.NewConsoleServiceMock(conf),
		Attendance:     NewAttendanceClientMock(),
		UserRepo:       inmemdb.NewUserRepository(db),
		CourseRepo:     inmemdb.NewCourseRepository(db),
		AssignmentRepo: inmemdb.NewAssignmentRepository(db),
		GradeRepo:      inmemdb.NewGradeRepository(db),
		Cache:          inmemcache.NewAssignmentCache(conf.Redis.AssignmentTTL),
	}
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, validate, translator)
	env.CourseSvc = course.NewService(env.CourseRepo, env.UserSvc, validate, translator)
	env.AssignmentSvc = assignment.NewService(env.AssignmentRepo, env.Cache, env.CourseSvc, logger, validate, translator)
	env.GradeSvc = grade.NewService(env.GradeRepo, env.CourseSvc, env.UserSvc, validate, translator)
	env.AttendanceSvc = attendance.NewService(env.Attendance, logger)
	env.DashboardSvc = dashboard.NewService(env.UserSvc, env.CourseSvc, env.AssignmentSvc, env.GradeSvc, env.AttendanceSvc)
	return env
}

// FreezeTime sets core.NowFunc to return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = orig })
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	first, last, email, pwd string,
	role user.Role,
	courseID string,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  last,
		Email:     email,
		Role:      role,
		CourseID:  courseID,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, name, teacherID string, subjects ...string) course.Course {
	t.Helper()
	now := time.Now().UTC()
	if subjects == nil {
		subjects = []string{}
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		ID:        uuid.NewString(),
		Name:      name,
		Subjects:  subjects,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	c course.Course,
	title string,
	due time.Time,
	status assignment.Status,
) assignment.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		ID:           uuid.NewString(),
		Title:        title,
		Type:         assignment.TypeHomework,
		DueDate:      due.UTC(),
		AssignedDate: now,
		Status:       status,
		CourseID:     c.ID,
		TeacherID:    c.TeacherID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// CreateGrade stores g, filling its ID, type & timestamps when blank.
func CreateGrade(t *testing.T, repo grade.Repository, g grade.Grade) grade.Grade {
	t.Helper()
	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Type == "" {
		g.Type = grade.TypeTest
	}
	if g.GradedAt.IsZero() {
		g.GradedAt = now
	}
	g.CreatedAt, g.UpdatedAt = now, now
	g, err := repo.CreateGrade(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return g
}

// AttendanceClientMock is an in-memory attendance.Client. Setting Err makes every call fail.
type AttendanceClientMock struct {
	mu      sync.Mutex
	Records []attendance.Record
	Err     error
	Tokens  []string
}

var _ attendance.Client = (*AttendanceClientMock)(nil)

var errMockUnavailable = errors.New("connection refused")

func NewAttendanceClientMock() *AttendanceClientMock {
	return &AttendanceClientMock{}
}

// Fail makes every subsequent call fail.
func (m *AttendanceClientMock) Fail() {
	m.mu.Lock()
	m.Err = errMockUnavailable
	m.mu.Unlock()
}

func (m *AttendanceClientMock) Create(_ context.Context, token string, nr attendance.NewRecord) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	if m.Err != nil {
		return attendance.Record{}, m.Err
	}
	rec := attendance.Record{
		ID:            attendance.ID(uuid.NewString()),
		StudentID:     attendance.ID(nr.StudentID),
		Status:        nr.Status,
		StudentName:   nr.Name,
		StudentCourse: nr.CourseName,
		CreatedAt:     time.Now().UTC(),
	}
	m.Records = append(m.Records, rec)
	return rec, nil
}

func (m *AttendanceClientMock) ListByStudent(_ context.Context, token, studentID string) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	if m.Err != nil {
		return nil, m.Err
	}
	records := make([]attendance.Record, 0)
	for _, r := range m.Records {
		if string(r.StudentID) == studentID {
			records = append(records, r)
		}
	}
	return records, nil
}

func (m *AttendanceClientMock) Delete(_ context.Context, token, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, token)
	if m.Err != nil {
		return m.Err
	}
	for i, r := range m.Records {
		if string(r.ID) == id {
			m.Records = append(m.Records[:i], m.Records[i+1:]...)
			return nil
		}
	}
	return errors.New("404 not found")
}

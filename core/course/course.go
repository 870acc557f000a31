package course

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

var (
	ErrNotFound        = errors.New("course not found")
	ErrOwnerNotTeacher = core.NewArgumentError("the owner of a course must be a teacher")
)

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subjects    []string  `json:"subjects"`
	SchoolYear  string    `json:"school_year"`
	TeacherID   string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasSubject is case-sensitive; subjects are cleaned on input.
func (c Course) HasSubject(subject string) bool {
	for _, s := range c.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type NewCourse struct {
	Name        string   `json:"name" form:"name" validate:"notblank,max=100"`
	Description string   `json:"description" form:"description" validate:"max=1000"`
	Subjects    []string `json:"subjects" form:"subjects" validate:"dive,notblank,max=50"`
	SchoolYear  string   `json:"school_year" form:"school_year" validate:"omitempty,max=20"`
	TeacherID   string   `json:"teacher_id" form:"teacher_id" validate:"required"`
}

func (nc *NewCourse) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.SchoolYear = core.CleanString(nc.SchoolYear)
	nc.TeacherID = core.CleanString(nc.TeacherID, true /* lower */)
	nc.Subjects = CleanSubjects(nc.Subjects)
}

type UpdateCourse struct {
	Name        string   `json:"name" validate:"max=100"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Subjects    []string `json:"subjects" validate:"omitempty,dive,notblank,max=50"`
	SchoolYear  string   `json:"school_year" validate:"omitempty,max=20"`
}

// CleanSubjects trims subjects and drops blanks & duplicates, keeping the first occurrence order.
func CleanSubjects(subjects []string) []string {
	cleaned := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		s = core.CleanString(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		cleaned = append(cleaned, s)
	}
	return cleaned
}

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// ListByTeacher returns a teacher's courses ordered by name.
		ListByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		ListCourses(ctx context.Context) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		ListByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		List(ctx context.Context) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		Enroll(ctx context.Context, courseID string, studentIDs ...string) error
		Roster(ctx context.Context, courseID string) ([]user.User, error)
	}

	service struct {
		repo       Repository
		usrSvc     user.Service
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, validate *validator.Validate, translator ut.Translator) Service {
	return &service{repo: repo, usrSvc: usrSvc, validate: validate, translator: translator}
}

func (svc *service) checkOwner(ctx context.Context, teacherID string) error {
	owner, err := svc.usrSvc.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding course owner")
	}
	switch owner.Role {
	case user.RoleTeacher:
		return nil
	case user.RoleStudent, user.RoleAdmin:
		return ErrOwnerNotTeacher
	default:
		return user.ErrInvalidRole
	}
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, core.TranslateErrors(err, svc.translator)
	}
	if err := svc.checkOwner(ctx, nc.TeacherID); err != nil {
		return Course{}, err
	}

	now := core.NowFunc()
	c := Course{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Description: nc.Description,
		Subjects:    nc.Subjects,
		SchoolYear:  nc.SchoolYear,
		TeacherID:   nc.TeacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, core.CleanString(id, true /* lower */))
}

func (svc *service) ListByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	return svc.repo.ListByTeacher(ctx, teacherID)
}

func (svc *service) List(ctx context.Context) ([]Course, error) {
	return svc.repo.ListCourses(ctx)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	if err := svc.validate.Struct(uc); err != nil {
		return Course{}, core.TranslateErrors(err, svc.translator)
	}
	c, err := svc.GetByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if name := core.CleanString(uc.Name); name != "" {
		c.Name = name
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Subjects != nil {
		c.Subjects = CleanSubjects(uc.Subjects)
	}
	if year := core.CleanString(uc.SchoolYear); year != "" {
		c.SchoolYear = year
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Enroll attaches students to a course. Non-students are rejected with an ArgumentError.
func (svc *service) Enroll(ctx context.Context, courseID string, studentIDs ...string) error {
	c, err := svc.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	for _, id := range studentIDs {
		if _, err = svc.usrSvc.SetCourse(ctx, id, c.ID); err != nil {
			return errors.Wrapf(err, "enrolling student %s", id)
		}
	}
	return nil
}

// Roster returns the students enrolled in a course, ordered by last then first name.
func (svc *service) Roster(ctx context.Context, courseID string) ([]user.User, error) {
	students, err := svc.usrSvc.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	SortByName(students)
	return students, nil
}

// SortByName orders users by last name, first name (case-insensitive) then ID.
func SortByName(usrs []user.User) {
	sort.SliceStable(usrs, func(i, j int) bool {
		return user.NameLess(usrs[i], usrs[j])
	})
}

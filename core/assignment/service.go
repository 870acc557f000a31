package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/user"
)

var (
	ErrNotFound        = errors.New("assignment not found")
	ErrNotCourseOwner  = core.NewArgumentError("you do not teach this course")
	ErrNotEnrolled     = core.NewArgumentError("you are not enrolled in this course")
	ErrAlreadyResolved = core.NewArgumentError("assignment status is already set")

	assignmentTypeTag  = "assignmenttype"
	assignmentTypeText = "invalid assignment type"
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// ListByCourse orders by due date then title.
		ListByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		// ListOverdueUnresolved returns assignments due strictly before `now` with an unset status.
		ListOverdueUnresolved(ctx context.Context, now time.Time) ([]Assignment, error)
		// ResolveStatus sets the status only if it is still unset.
		// It reports false when nothing was written.
		ResolveStatus(ctx context.Context, id string, status Status, at time.Time) (bool, error)
		DeleteAssignment(ctx context.Context, id string) error
	}

	// Cache keeps the assignments of a course. It is invalidated whenever one of them changes.
	Cache interface {
		Get(ctx context.Context, courseID string) ([]Assignment, bool, error)
		Set(ctx context.Context, courseID string, assignments []Assignment) error
		Invalidate(ctx context.Context, courseIDs ...string) error
	}

	Service interface {
		Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		ListByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		ListByCourses(ctx context.Context, courseIDs ...string) ([]Assignment, error)
		TurnIn(ctx context.Context, usr user.User, id string) (Assignment, error)
		Delete(ctx context.Context, teacherID, id string) error
		SweepOverdue(ctx context.Context) (SweepResult, error)
	}

	// generations counts cache invalidations per course.
	generations struct {
		mu sync.Mutex
		m  map[string]uint64
	}

	service struct {
		repo       Repository
		cache      Cache
		gens       generations
		courseSvc  course.Service
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	cache Cache,
	courseSvc course.Service,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	_ = validate.RegisterValidation(assignmentTypeTag, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(Type)
		return ok && t.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, assignmentTypeTag, assignmentTypeText)

	return &service{
		repo:       repo,
		cache:      cache,
		courseSvc:  courseSvc,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

func (g *generations) get(courseID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[courseID]
}

func (g *generations) bump(courseIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = make(map[string]uint64)
	}
	for _, id := range courseIDs {
		g.m[id]++
	}
}

func (svc *service) ownedCourse(ctx context.Context, teacherID, courseID string) (course.Course, error) {
	c, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if c.TeacherID != teacherID {
		return course.Course{}, ErrNotCourseOwner
	}
	return c, nil
}

func (svc *service) invalidate(ctx context.Context, courseIDs ...string) {
	if len(courseIDs) == 0 {
		return
	}
	svc.gens.bump(courseIDs...)
	if err := svc.cache.Invalidate(ctx, courseIDs...); err != nil {
		svc.logger.Warn("invalidating assignment cache", errors.Wrap(err, "invalidating assignment cache"),
			map[string]interface{}{"courses": courseIDs})
	}
}

func (svc *service) Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error) {
	na.Clean()
	if err := svc.validate.Struct(na); err != nil {
		return Assignment{}, core.TranslateErrors(err, svc.translator)
	}
	c, err := svc.ownedCourse(ctx, teacherID, na.CourseID)
	if err != nil {
		return Assignment{}, err
	}

	now := core.NowFunc()
	assigned := na.AssignedDate
	if assigned.IsZero() {
		assigned = now
	}
	if na.DueDate.Before(assigned) {
		return Assignment{}, core.NewValidationError(nil,
			core.FieldError{Field: "due_date", Error: "due date cannot be before the assigned date"})
	}

	a := Assignment{
		ID:           uuid.NewString(),
		Title:        na.Title,
		Description:  na.Description,
		Type:         na.Type,
		DueDate:      na.DueDate.UTC(),
		AssignedDate: assigned.UTC(),
		CourseID:     c.ID,
		TeacherID:    teacherID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a, err = svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	svc.invalidate(ctx, a.CourseID)
	return a, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, core.CleanString(id, true /* lower */))
}

// ListByCourse goes through the cache; cache failures are logged and skipped.
func (svc *service) ListByCourse(ctx context.Context, courseID string) ([]Assignment, error) {
	if courseID == "" {
		return []Assignment{}, nil
	}
	cached, ok, err := svc.cache.Get(ctx, courseID)
	if err != nil {
		svc.logger.Warn("reading assignment cache", errors.Wrap(err, "reading assignment cache"))
	} else if ok {
		return cached, nil
	}

	gen := svc.gens.get(courseID)
	as, err := svc.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err = svc.cache.Set(ctx, courseID, as); err != nil {
		svc.logger.Warn("writing assignment cache", errors.Wrap(err, "writing assignment cache"))
	} else if svc.gens.get(courseID) != gen {
		// invalidated while reading: the entry just written may be stale
		svc.invalidate(ctx, courseID)
	}
	return as, nil
}

// ListByCourses merges the assignments of several courses, ordered by due date then title.
func (svc *service) ListByCourses(ctx context.Context, courseIDs ...string) ([]Assignment, error) {
	all := make([]Assignment, 0)
	for _, id := range courseIDs {
		as, err := svc.ListByCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, as...)
	}
	SortByDueDate(all)
	return all, nil
}

// TurnIn resolves an assignment as turned in. Students must be enrolled in its course,
// teachers must own it.
func (svc *service) TurnIn(ctx context.Context, usr user.User, id string) (Assignment, error) {
	a, err := svc.GetByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	switch usr.Role {
	case user.RoleStudent:
		if usr.CourseID != a.CourseID {
			return Assignment{}, ErrNotEnrolled
		}
	case user.RoleTeacher:
		if _, err = svc.ownedCourse(ctx, usr.ID, a.CourseID); err != nil {
			return Assignment{}, err
		}
	case user.RoleAdmin:
		return Assignment{}, ErrNotEnrolled
	default:
		return Assignment{}, user.ErrInvalidRole
	}

	now := core.NowFunc()
	ok, err := svc.repo.ResolveStatus(ctx, a.ID, StatusTurnedIn, now)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "turning in assignment")
	}
	if !ok {
		return Assignment{}, ErrAlreadyResolved
	}
	svc.invalidate(ctx, a.CourseID)

	a.Status = StatusTurnedIn
	a.UpdatedAt = now
	return a, nil
}

func (svc *service) Delete(ctx context.Context, teacherID, id string) error {
	a, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.ownedCourse(ctx, teacherID, a.CourseID); err != nil {
		return err
	}
	if err = svc.repo.DeleteAssignment(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	svc.invalidate(ctx, a.CourseID)
	return nil
}

// SweepOverdue marks every overdue assignment with an unset status as missed.
// Each assignment is written on its own with a conditional update, so resolved ones are never
// overwritten and repeated runs write nothing.
func (svc *service) SweepOverdue(ctx context.Context) (SweepResult, error) {
	now := core.NowFunc()
	res := SweepResult{CourseIDs: []string{}}

	overdue, err := svc.repo.ListOverdueUnresolved(ctx, now)
	if err != nil {
		return res, errors.Wrap(err, "listing overdue assignments")
	}
	res.Checked = len(overdue)

	touched := make(map[string]bool)
	for _, a := range overdue {
		if err = ctx.Err(); err != nil {
			break
		}
		var ok bool
		ok, err = svc.repo.ResolveStatus(ctx, a.ID, StatusMissed, now)
		if err != nil {
			err = errors.Wrapf(err, "marking assignment %s as missed", a.ID)
			break
		}
		if ok {
			res.Missed++
			touched[a.CourseID] = true
		}
	}

	for id := range touched {
		res.CourseIDs = append(res.CourseIDs, id)
	}
	sort.Strings(res.CourseIDs)
	svc.invalidate(ctx, res.CourseIDs...)
	return res, err
}

// SortByDueDate orders assignments by due date then title.
func SortByDueDate(as []Assignment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].DueDate.Equal(as[j].DueDate) {
			return as[i].DueDate.Before(as[j].DueDate)
		}
		return as[i].Title < as[j].Title
	})
}

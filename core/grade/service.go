package grade

import (
	"context"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/user"
)

var (
	ErrNotFound       = errors.New("grade not found")
	ErrDuplicate      = errors.New("a grade already exists for this student, subject and assignment")
	ErrNotCourseOwner = core.NewArgumentError("you do not teach this course")

	letterTag     = "letter"
	letterText    = "invalid grade"
	gradeTypeTag  = "gradetype"
	gradeTypeText = "invalid grade type"

	notEnrolledText    = "student is not enrolled in this course"
	unknownSubjectText = "this course has no such subject"
)

type (
	Repository interface {
		// CreateGrade returns ErrDuplicate if a grade with the same non-empty assignment already fills the slot.
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		// ListByStudent orders by graded time, most recent first.
		ListByStudent(ctx context.Context, studentID string) ([]Grade, error)
		ListByStudents(ctx context.Context, studentIDs ...string) ([]Grade, error)
		ListByCourse(ctx context.Context, courseID string) ([]Grade, error)
		// UpdateGrade returns ErrDuplicate like CreateGrade.
		UpdateGrade(ctx context.Context, g Grade) (Grade, error)
		DeleteGrade(ctx context.Context, id string) error
		// UpsertGrades writes all grades in one transaction, keyed by Grade.Key.
		// An existing grade keeps its ID, CreatedAt & Feedback; everything else is overwritten.
		UpsertGrades(ctx context.Context, grades ...Grade) ([]Grade, error)
	}

	Service interface {
		Create(ctx context.Context, teacherID string, ng NewGrade) (Grade, error)
		GetByID(ctx context.Context, id string) (Grade, error)
		Update(ctx context.Context, teacherID, id string, ug UpdateGrade) (Grade, error)
		UpdateFeedback(ctx context.Context, teacherID, id string, uf UpdateFeedback) (Grade, error)
		Delete(ctx context.Context, teacherID, id string) error
		ListByStudent(ctx context.Context, studentID string) ([]Grade, error)
		ListByStudents(ctx context.Context, studentIDs ...string) ([]Grade, error)
		ListByCourse(ctx context.Context, courseID string) ([]Grade, error)
		BulkSave(ctx context.Context, teacherID string, bg BulkGrades) ([]Grade, error)
	}

	service struct {
		repo       Repository
		courseSvc  course.Service
		usrSvc     user.Service
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courseSvc course.Service,
	usrSvc user.Service,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	InitValidators(validate, translator)
	return &service{
		repo:       repo,
		courseSvc:  courseSvc,
		usrSvc:     usrSvc,
		validate:   validate,
		translator: translator,
	}
}

// InitValidators registers the grade validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(letterTag, func(fl validator.FieldLevel) bool {
		// blank parses to LetterNone, which clears a grade
		_, err := ParseLetter(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(validate, translator, letterTag, letterText)

	_ = validate.RegisterValidation(gradeTypeTag, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(Type)
		return ok && t.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, gradeTypeTag, gradeTypeText)
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

func (svc *service) enrolled(ctx context.Context, courseID string) (map[string]bool, error) {
	students, err := svc.usrSvc.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrolled students")
	}
	ids := make(map[string]bool, len(students))
	for _, s := range students {
		ids[s.ID] = true
	}
	return ids, nil
}

func checkSubject(c course.Course, subject string) *core.FieldError {
	if len(c.Subjects) > 0 && !c.HasSubject(subject) {
		return &core.FieldError{Field: "subject", Error: unknownSubjectText}
	}
	return nil
}

func (svc *service) Create(ctx context.Context, teacherID string, ng NewGrade) (Grade, error) {
	ng.Clean()
	if err := svc.validate.Struct(ng); err != nil {
		return Grade{}, core.TranslateErrors(err, svc.translator)
	}
	c, err := svc.ownedCourse(ctx, teacherID, ng.CourseID)
	if err != nil {
		return Grade{}, err
	}
	if fe := checkSubject(c, ng.Subject); fe != nil {
		return Grade{}, core.NewValidationError(nil, *fe)
	}
	students, err := svc.enrolled(ctx, c.ID)
	if err != nil {
		return Grade{}, err
	}
	if !students[ng.StudentID] {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: notEnrolledText})
	}

	letter, _ := ParseLetter(ng.Letter)
	now := core.NowFunc()
	gradedAt := ng.GradedAt
	if gradedAt.IsZero() {
		gradedAt = now
	}
	g := Grade{
		ID:         uuid.NewString(),
		StudentID:  ng.StudentID,
		CourseID:   c.ID,
		Subject:    ng.Subject,
		Letter:     letter,
		Type:       ng.Type,
		Assignment: ng.Assignment,
		TeacherID:  teacherID,
		Feedback:   ng.Feedback,
		GradedAt:   gradedAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	g, err = svc.repo.CreateGrade(ctx, g)
	if errors.Cause(err) == ErrDuplicate {
		return Grade{}, core.NewValidationError(err, core.FieldError{Field: "assignment", Error: err.Error()})
	}
	return g, err
}

func (svc *service) GetByID(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, core.CleanString(id, true /* lower */))
}

// ownedGrade returns the grade if teacherID teaches its course.
func (svc *service) ownedGrade(ctx context.Context, teacherID, id string) (Grade, course.Course, error) {
	g, err := svc.GetByID(ctx, id)
	if err != nil {
		return Grade{}, course.Course{}, err
	}
	c, err := svc.ownedCourse(ctx, teacherID, g.CourseID)
	if err != nil {
		return Grade{}, course.Course{}, err
	}
	return g, c, nil
}

func (svc *service) Update(ctx context.Context, teacherID, id string, ug UpdateGrade) (Grade, error) {
	ug.Clean()
	if err := svc.validate.Struct(ug); err != nil {
		return Grade{}, core.TranslateErrors(err, svc.translator)
	}
	g, c, err := svc.ownedGrade(ctx, teacherID, id)
	if err != nil {
		return Grade{}, err
	}

	if ug.Letter != nil {
		if g.Letter, err = ParseLetter(*ug.Letter); err != nil {
			return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "letter", Error: letterText})
		}
	}
	if ug.Type != "" {
		g.Type = ug.Type
	}
	if subject := core.CleanString(ug.Subject); subject != "" {
		if fe := checkSubject(c, subject); fe != nil {
			return Grade{}, core.NewValidationError(nil, *fe)
		}
		g.Subject = subject
	}
	if ug.Assignment != nil {
		g.Assignment = core.CleanString(*ug.Assignment)
	}
	if ug.Feedback != nil {
		g.Feedback = core.CleanString(*ug.Feedback)
	}
	if ug.GradedAt != nil && !ug.GradedAt.IsZero() {
		g.GradedAt = ug.GradedAt.UTC()
	}
	g.TeacherID = teacherID
	g.UpdatedAt = core.NowFunc()
	g, err = svc.repo.UpdateGrade(ctx, g)
	if errors.Cause(err) == ErrDuplicate {
		return Grade{}, core.NewValidationError(err, core.FieldError{Field: "assignment", Error: err.Error()})
	}
	return g, err
}

func (svc *service) UpdateFeedback(ctx context.Context, teacherID, id string, uf UpdateFeedback) (Grade, error) {
	uf.Feedback = core.CleanString(uf.Feedback)
	if err := svc.validate.Struct(uf); err != nil {
		return Grade{}, core.TranslateErrors(err, svc.translator)
	}
	g, _, err := svc.ownedGrade(ctx, teacherID, id)
	if err != nil {
		return Grade{}, err
	}
	g.Feedback = uf.Feedback
	g.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGrade(ctx, g)
}

func (svc *service) Delete(ctx context.Context, teacherID, id string) error {
	g, _, err := svc.ownedGrade(ctx, teacherID, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteGrade(ctx, g.ID)
}

func (svc *service) ListByStudent(ctx context.Context, studentID string) ([]Grade, error) {
	return svc.repo.ListByStudent(ctx, studentID)
}

func (svc *service) ListByStudents(ctx context.Context, studentIDs ...string) ([]Grade, error) {
	if len(studentIDs) == 0 {
		return []Grade{}, nil
	}
	return svc.repo.ListByStudents(ctx, studentIDs...)
}

func (svc *service) ListByCourse(ctx context.Context, courseID string) ([]Grade, error) {
	return svc.repo.ListByCourse(ctx, courseID)
}

// BulkSave upserts one grade per non-blank entry, all or nothing.
// Any unparsable entry or non-enrolled student fails the whole batch with a ValidationError
// listing every offending entry, and nothing is written.
// Concurrent saves of the same slot are last-write-wins.
func (svc *service) BulkSave(ctx context.Context, teacherID string, bg BulkGrades) ([]Grade, error) {
	bg.Clean()
	if err := svc.validate.Struct(bg); err != nil {
		return nil, core.TranslateErrors(err, svc.translator)
	}
	c, err := svc.ownedCourse(ctx, teacherID, bg.CourseID)
	if err != nil {
		return nil, err
	}
	if fe := checkSubject(c, bg.Subject); fe != nil {
		return nil, core.NewValidationError(nil, *fe)
	}
	students, err := svc.enrolled(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(bg.Entries))
	for id := range bg.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := core.NowFunc()
	gradedAt := bg.Date
	if gradedAt.IsZero() {
		gradedAt = now
	}

	var fldErrs []core.FieldError
	seen := make(map[string]bool, len(ids))
	grades := make([]Grade, 0, len(ids))
	for _, rawID := range ids {
		raw := core.CleanString(bg.Entries[rawID])
		if raw == "" {
			continue
		}
		field := "entries[" + rawID + "]"
		studentID := core.CleanString(rawID, true /* lower */)
		letter, err := ParseLetter(raw)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: letterText})
			continue
		}
		if !students[studentID] {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: notEnrolledText})
			continue
		}
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		grades = append(grades, Grade{
			ID:         uuid.NewString(),
			StudentID:  studentID,
			CourseID:   c.ID,
			Subject:    bg.Subject,
			Letter:     letter,
			Type:       bg.Type,
			Assignment: bg.Assignment,
			TeacherID:  teacherID,
			GradedAt:   gradedAt.UTC(),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	if len(grades) == 0 {
		return []Grade{}, nil
	}

	saved, err := svc.repo.UpsertGrades(ctx, grades...)
	return saved, errors.Wrap(err, "upserting grades")
}

package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type CourseOverview struct {
	Course             course.Course `json:"course"`
	StudentCount       int           `json:"student_count"`
	AssignmentCount    int           `json:"assignment_count"`
	PendingAssignments int           `json:"pending_assignments"`
}

type TeacherHome struct {
	Profile             Profile                 `json:"profile"`
	Courses             []CourseOverview        `json:"courses"`
	StudentCount        int                     `json:"student_count"`
	UpcomingAssignments []assignment.Assignment `json:"upcoming_assignments"`
}

func (svc *service) teacher(ctx context.Context, teacherID string) (user.User, error) {
	usr, err := svc.usrSvc.GetByID(ctx, teacherID)
	if err != nil {
		return user.User{}, err
	}
	switch usr.Role {
	case user.RoleTeacher:
		return usr, nil
	case user.RoleStudent, user.RoleAdmin:
		return user.User{}, ErrNotATeacher
	default:
		return user.User{}, user.ErrInvalidRole
	}
}

func (svc *service) TeacherHome(ctx context.Context, teacherID string) (TeacherHome, error) {
	usr, err := svc.teacher(ctx, teacherID)
	if err != nil {
		return TeacherHome{}, err
	}
	courses, err := svc.courseSvc.ListByTeacher(ctx, usr.ID)
	if err != nil {
		return TeacherHome{}, errors.Wrap(err, "listing courses")
	}

	now := core.NowFunc()
	home := TeacherHome{
		Profile:             newProfile(usr, nil),
		Courses:             make([]CourseOverview, 0, len(courses)),
		UpcomingAssignments: []assignment.Assignment{},
	}
	all := make([]assignment.Assignment, 0)
	for _, c := range courses {
		students, err := svc.usrSvc.ListByCourse(ctx, c.ID)
		if err != nil {
			return TeacherHome{}, errors.Wrap(err, "listing students")
		}
		as, err := svc.assignmentSvc.ListByCourse(ctx, c.ID)
		if err != nil {
			return TeacherHome{}, errors.Wrap(err, "listing assignments")
		}
		home.Courses = append(home.Courses, CourseOverview{
			Course:             c,
			StudentCount:       len(students),
			AssignmentCount:    len(as),
			PendingAssignments: countPending(as, now),
		})
		home.StudentCount += len(students)
		all = append(all, as...)
	}
	home.UpcomingAssignments = Upcoming(all, now, UpcomingLimit)
	return home, nil
}

type GradingFilter struct {
	CourseID     string `query:"course" json:"course"`
	AssignmentID string `query:"assignment" json:"assignment"`
	Subject      string `query:"subject" json:"subject"`
}

// GradingSheet is the teacher's grading worksheet. Collections are never nil.
type GradingSheet struct {
	Courses            []course.Course        `json:"courses"`
	SelectedCourse     *course.Course         `json:"selected_course"`
	Students           []user.User            `json:"students"`
	Assignments        []grade.Option         `json:"assignments"`
	SelectedAssignment *grade.Option          `json:"selected_assignment"`
	Subjects           []string               `json:"subjects"`
	SelectedSubject    string                 `json:"selected_subject"`
	GradeTypes         []grade.Option         `json:"grade_types"`
	Letters            []grade.Letter         `json:"letters"`
	ExistingGrades     map[string]grade.Grade `json:"existing_grades"` // by student ID
}

// GradingSheet selects the filtered course (or the teacher's first one), the filtered assignment
// (or the first option) and the filtered subject (or the course's first subject), then collects
// the roster and the grades already given for that selection.
func (svc *service) GradingSheet(ctx context.Context, teacherID string, filter GradingFilter) (GradingSheet, error) {
	usr, err := svc.teacher(ctx, teacherID)
	if err != nil {
		return GradingSheet{}, err
	}
	courses, err := svc.courseSvc.ListByTeacher(ctx, usr.ID)
	if err != nil {
		return GradingSheet{}, errors.Wrap(err, "listing courses")
	}

	sheet := GradingSheet{
		Courses:        courses,
		Students:       []user.User{},
		Assignments:    []grade.Option{},
		Subjects:       []string{},
		GradeTypes:     grade.TypeOptions(),
		Letters:        grade.Letters,
		ExistingGrades: map[string]grade.Grade{},
	}
	if sheet.Courses == nil {
		sheet.Courses = []course.Course{}
	}
	if len(courses) == 0 {
		return sheet, nil
	}

	selected := courses[0]
	if id := core.CleanString(filter.CourseID, true /* lower */); id != "" {
		var found bool
		for _, c := range courses {
			if c.ID == id {
				selected, found = c, true
				break
			}
		}
		if !found {
			return GradingSheet{}, ErrNotCourseOwner
		}
	}
	sheet.SelectedCourse = &selected
	sheet.Subjects = append(sheet.Subjects, selected.Subjects...)

	if sheet.Students, err = svc.courseSvc.Roster(ctx, selected.ID); err != nil {
		return GradingSheet{}, errors.Wrap(err, "listing roster")
	}
	as, err := svc.assignmentSvc.ListByCourse(ctx, selected.ID)
	if err != nil {
		return GradingSheet{}, errors.Wrap(err, "listing assignments")
	}
	grades, err := svc.gradeSvc.ListByCourse(ctx, selected.ID)
	if err != nil {
		return GradingSheet{}, errors.Wrap(err, "listing grades")
	}

	names := make([]string, 0, len(as)+len(grades))
	for _, a := range as {
		names = append(names, a.Title)
	}
	for _, g := range grades {
		names = append(names, g.Assignment)
	}
	sheet.Assignments = grade.Options(names...)

	if opt, ok := grade.FindOption(sheet.Assignments, filter.AssignmentID); ok {
		sheet.SelectedAssignment = &opt
	} else if len(sheet.Assignments) > 0 {
		opt = sheet.Assignments[0]
		sheet.SelectedAssignment = &opt
	}

	if subject := core.CleanString(filter.Subject); subject != "" {
		sheet.SelectedSubject = subject
	} else if len(sheet.Subjects) > 0 {
		sheet.SelectedSubject = sheet.Subjects[0]
	}

	if sheet.SelectedAssignment != nil && sheet.SelectedSubject != "" {
		sheet.ExistingGrades = ExistingGrades(grades, sheet.SelectedAssignment.Name, sheet.SelectedSubject)
	}
	return sheet, nil
}

// ExistingGrades maps student IDs to their most recent grade for an assignment & subject.
func ExistingGrades(grades []grade.Grade, assignmentName, subject string) map[string]grade.Grade {
	existing := make(map[string]grade.Grade)
	for _, g := range grades {
		if g.Assignment != assignmentName || g.Subject != subject {
			continue
		}
		if prev, ok := existing[g.StudentID]; ok && prev.GradedAt.After(g.GradedAt) {
			continue
		}
		existing[g.StudentID] = g
	}
	return existing
}

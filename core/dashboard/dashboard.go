package dashboard

import (
	"context"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

var (
	ErrNotAStudent    = core.NewArgumentError("user is not a student")
	ErrNotATeacher    = core.NewArgumentError("user is not a teacher")
	ErrNotCourseOwner = core.NewArgumentError("you do not teach this course")

	// RecentGradesLimit bounds StudentHome.RecentGrades.
	RecentGradesLimit = 5
	// UpcomingLimit bounds TeacherHome.UpcomingAssignments.
	UpcomingLimit = 10
)

// Service assembles the read models of the student and teacher pages.
type Service interface {
	StudentHome(ctx context.Context, studentID, token string) (StudentHome, error)
	TeacherHome(ctx context.Context, teacherID string) (TeacherHome, error)
	GradingSheet(ctx context.Context, teacherID string, filter GradingFilter) (GradingSheet, error)
}

type service struct {
	usrSvc        user.Service
	courseSvc     course.Service
	assignmentSvc assignment.Service
	gradeSvc      grade.Service
	attendanceSvc attendance.Service
}

var _ Service = (*service)(nil)

func NewService(
	usrSvc user.Service,
	courseSvc course.Service,
	assignmentSvc assignment.Service,
	gradeSvc grade.Service,
	attendanceSvc attendance.Service,
) Service {
	return &service{
		usrSvc:        usrSvc,
		courseSvc:     courseSvc,
		assignmentSvc: assignmentSvc,
		gradeSvc:      gradeSvc,
		attendanceSvc: attendanceSvc,
	}
}

type Profile struct {
	ID                string  `json:"id"`
	FullName          string  `json:"full_name"`
	Initials          string  `json:"initials"`
	Email             string  `json:"email"`
	Role              string  `json:"role"`
	ClassLabel        string  `json:"class_label"`
	CourseName        *string `json:"course_name"`
	ProfilePictureURL string  `json:"profile_picture_url"`
}

func newProfile(usr user.User, courseName *string) Profile {
	return Profile{
		ID:                usr.ID,
		FullName:          usr.FullName(),
		Initials:          usr.Initials(),
		Email:             usr.Email,
		Role:              usr.Role.Label(),
		ClassLabel:        usr.ClassLabel,
		CourseName:        courseName,
		ProfilePictureURL: usr.ProfilePictureURL,
	}
}

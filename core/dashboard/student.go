package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type QuickStats struct {
	Average            string `json:"average"`
	AveragePercentage  int    `json:"average_percentage"`
	Attendance         string `json:"attendance"`
	PendingAssignments int    `json:"pending_assignments"`
}

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	StudentID      string  `json:"student_id"`
	Name           string  `json:"name"`
	Initials       string  `json:"initials"`
	Average        float64 `json:"average"`
	AverageDisplay string  `json:"average_display"`
	IsCurrent      bool    `json:"is_current"`
}

// StudentHome is everything the student home page shows. Collections are never nil.
type StudentHome struct {
	Profile             Profile                 `json:"profile"`
	QuickStats          QuickStats              `json:"quick_stats"`
	RecentGrades        []grade.Grade           `json:"recent_grades"`
	UpcomingAssignments []assignment.Assignment `json:"upcoming_assignments"`
	SubjectGrades       []grade.SubjectSummary  `json:"subject_grades"`
	Attendance          []attendance.Record     `json:"attendance"`
	AttendanceSummary   attendance.Summary      `json:"attendance_summary"`
	Leaderboard         []LeaderboardEntry      `json:"leaderboard"`
}

// StudentHome builds a student's home page. A student without a course gets a nil course name
// and an empty leaderboard. Attendance failures leave the attendance list empty.
func (svc *service) StudentHome(ctx context.Context, studentID, token string) (StudentHome, error) {
	usr, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		return StudentHome{}, err
	}
	switch usr.Role {
	case user.RoleStudent:
	case user.RoleTeacher, user.RoleAdmin:
		return StudentHome{}, ErrNotAStudent
	default:
		return StudentHome{}, user.ErrInvalidRole
	}

	grades, err := svc.gradeSvc.ListByStudent(ctx, usr.ID)
	if err != nil {
		return StudentHome{}, errors.Wrap(err, "listing grades")
	}

	var (
		courseName  *string
		assignments = []assignment.Assignment{}
		leaderboard = []LeaderboardEntry{}
	)
	if usr.CourseID != "" {
		c, err := svc.courseSvc.GetByID(ctx, usr.CourseID)
		switch {
		case err == nil:
			name := c.Name
			courseName = &name
			if assignments, err = svc.assignmentSvc.ListByCourse(ctx, c.ID); err != nil {
				return StudentHome{}, errors.Wrap(err, "listing assignments")
			}
			if leaderboard, err = svc.leaderboard(ctx, c.ID, usr.ID); err != nil {
				return StudentHome{}, errors.Wrap(err, "building leaderboard")
			}
		case errors.Cause(err) == course.ErrNotFound:
			// dangling course reference: same as no course
		default:
			return StudentHome{}, errors.Wrap(err, "finding course")
		}
	}

	now := core.NowFunc()
	records := svc.attendanceSvc.ListForStudent(ctx, token, usr.ID)
	attSummary := attendance.Summarize(records)
	summary := grade.Summarize(grades)

	return StudentHome{
		Profile: newProfile(usr, courseName),
		QuickStats: QuickStats{
			Average:            summary.AverageDisplay,
			AveragePercentage:  summary.Percentage,
			Attendance:         attSummary.Display,
			PendingAssignments: countPending(assignments, now),
		},
		RecentGrades:        RecentGrades(grades, RecentGradesLimit),
		UpcomingAssignments: Upcoming(assignments, now, 0),
		SubjectGrades:       summary.Subjects,
		Attendance:          records,
		AttendanceSummary:   attSummary,
		Leaderboard:         leaderboard,
	}, nil
}

func (svc *service) leaderboard(ctx context.Context, courseID, currentID string) ([]LeaderboardEntry, error) {
	classmates, err := svc.courseSvc.Roster(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(classmates))
	for _, s := range classmates {
		ids = append(ids, s.ID)
	}
	grades, err := svc.gradeSvc.ListByStudents(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return BuildLeaderboard(classmates, grades, currentID), nil
}

// BuildLeaderboard ranks students by descending overall average.
// Students without any grade come last. Equal averages are ordered by last name, first name
// (case-insensitive) then ID, so the ranking is deterministic. Ranks are positions 1..n.
func BuildLeaderboard(students []user.User, grades []grade.Grade, currentID string) []LeaderboardEntry {
	byStudent := make(map[string][]grade.Grade, len(students))
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}

	type ranked struct {
		usr    user.User
		avg    float64
		graded bool
	}
	rows := make([]ranked, 0, len(students))
	for _, s := range students {
		avg, ok := grade.OverallAverage(byStudent[s.ID])
		rows = append(rows, ranked{usr: s, avg: avg, graded: ok})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.graded != b.graded {
			return a.graded
		}
		if a.avg != b.avg {
			return a.avg > b.avg
		}
		return user.NameLess(a.usr, b.usr)
	})

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			StudentID:      r.usr.ID,
			Name:           r.usr.FullName(),
			Initials:       r.usr.Initials(),
			Average:        r.avg,
			AverageDisplay: grade.FormatAverage(r.avg, r.graded),
			IsCurrent:      r.usr.ID == currentID,
		})
	}
	return entries
}

// RecentGrades returns at most limit grades, most recent first.
func RecentGrades(grades []grade.Grade, limit int) []grade.Grade {
	recent := make([]grade.Grade, len(grades))
	copy(recent, grades)
	grade.SortRecentFirst(recent)
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}

// Upcoming returns the assignments due at or after now, soonest first. limit <= 0 means no limit.
func Upcoming(as []assignment.Assignment, now time.Time, limit int) []assignment.Assignment {
	upcoming := make([]assignment.Assignment, 0, len(as))
	for _, a := range as {
		if !a.DueDate.Before(now) {
			upcoming = append(upcoming, a)
		}
	}
	assignment.SortByDueDate(upcoming)
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

func countPending(as []assignment.Assignment, now time.Time) int {
	var n int
	for _, a := range as {
		if a.IsPending(now) {
			n++
		}
	}
	return n
}

package assignment

import (
	"strings"
	"time"

	"github.com/trezcool/gradebook/core"
)

type Type string

const (
	TypeHomework  Type = "HOMEWORK"
	TypeClasswork Type = "CLASSWORK"
	TypeProject   Type = "PROJECT"
	TypeTest      Type = "TEST"
	TypeExam      Type = "EXAM"
)

var Types = []Type{TypeHomework, TypeClasswork, TypeProject, TypeTest, TypeExam}

func (t Type) Valid() bool {
	switch t {
	case TypeHomework, TypeClasswork, TypeProject, TypeTest, TypeExam:
		return true
	}
	return false
}

// Status is unset until the assignment is resolved; both resolved states are terminal.
type Status string

const (
	StatusUnset    Status = ""
	StatusTurnedIn Status = "TURNED_IN"
	StatusMissed   Status = "MISSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnset, StatusTurnedIn, StatusMissed:
		return true
	}
	return false
}

func (s Status) Resolved() bool { return s != StatusUnset }

type Assignment struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         Type      `json:"type"`
	DueDate      time.Time `json:"due_date"`
	AssignedDate time.Time `json:"assigned_date"`
	Status       Status    `json:"status"`
	CourseID     string    `json:"course_id"`
	TeacherID    string    `json:"teacher_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsPending reports whether the assignment is unresolved and not yet due.
func (a Assignment) IsPending(now time.Time) bool {
	return !a.Status.Resolved() && !a.DueDate.Before(now)
}

// IsOverdue reports whether the sweep should mark the assignment as missed.
func (a Assignment) IsOverdue(now time.Time) bool {
	return !a.Status.Resolved() && a.DueDate.Before(now)
}

type NewAssignment struct {
	Title        string    `json:"title" validate:"notblank,max=200"`
	Description  string    `json:"description" validate:"max=2000"`
	Type         Type      `json:"type" validate:"required,assignmenttype"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	AssignedDate time.Time `json:"assigned_date"`
	CourseID     string    `json:"course_id" validate:"required"`
}

func (na *NewAssignment) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Type = Type(strings.ToUpper(core.CleanString(string(na.Type))))
	na.CourseID = core.CleanString(na.CourseID, true /* lower */)
}

// SweepResult reports what one sweep run did.
type SweepResult struct {
	Checked   int      `json:"checked"`
	Missed    int      `json:"missed"`
	CourseIDs []string `json:"course_ids"`
}

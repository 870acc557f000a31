package grade

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var ErrInvalidLetter = errors.New("invalid grade")

// Letter is a grade on the 2 (bad) to 6 (excellent) scale. LetterNone means "not graded".
type Letter string

const (
	LetterNone      Letter = ""
	LetterBad       Letter = "BAD"
	LetterAverage   Letter = "AVERAGE"
	LetterGood      Letter = "GOOD"
	LetterVeryGood  Letter = "VERY_GOOD"
	LetterExcellent Letter = "EXCELLENT"
)

var Letters = []Letter{LetterBad, LetterAverage, LetterGood, LetterVeryGood, LetterExcellent}

// Valid reports whether l is one of Letters. LetterNone is not valid.
func (l Letter) Valid() bool {
	return Numeric(l) > 0
}

func (l Letter) Label() string {
	switch l {
	case LetterBad:
		return "Bad"
	case LetterAverage:
		return "Average"
	case LetterGood:
		return "Good"
	case LetterVeryGood:
		return "Very good"
	case LetterExcellent:
		return "Excellent"
	case LetterNone:
		return "--"
	}
	return string(l)
}

// ParseLetter accepts a letter name (any case, "very good" or "very-good" work too) or its numeric value.
// A blank string parses to LetterNone.
func ParseLetter(s string) (Letter, error) {
	s = core.CleanString(s)
	if s == "" {
		return LetterNone, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if l, ok := LetterFromNumeric(n); ok {
			return l, nil
		}
		return LetterNone, ErrInvalidLetter
	}
	l := Letter(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToUpper(s)))
	if !l.Valid() {
		return LetterNone, ErrInvalidLetter
	}
	return l, nil
}

func LetterFromNumeric(n int) (Letter, bool) {
	for _, l := range Letters {
		if Numeric(l) == n {
			return l, true
		}
	}
	return LetterNone, false
}

type Type string

const (
	TypeExam      Type = "EXAM"
	TypeTest      Type = "TEST"
	TypeProject   Type = "PROJECT"
	TypeHomework  Type = "HOMEWORK"
	TypeOral      Type = "ORAL"
	TypeClasswork Type = "CLASSWORK"
)

var Types = []Type{TypeExam, TypeTest, TypeProject, TypeHomework, TypeOral, TypeClasswork}

func (t Type) Valid() bool {
	switch t {
	case TypeExam, TypeTest, TypeProject, TypeHomework, TypeOral, TypeClasswork:
		return true
	}
	return false
}

type Grade struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	Subject    string    `json:"subject"`
	Letter     Letter    `json:"letter"`
	Type       Type      `json:"type"`
	Assignment string    `json:"assignment"` // assignment title; may be empty
	TeacherID  string    `json:"teacher_id"`
	Feedback   string    `json:"feedback"`
	GradedAt   time.Time `json:"graded_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (g Grade) Numeric() int { return Numeric(g.Letter) }

// Key identifies the grade slot that bulk saves upsert into.
type Key struct {
	StudentID  string
	CourseID   string
	Subject    string
	Assignment string
}

func (g Grade) Key() Key {
	return Key{StudentID: g.StudentID, CourseID: g.CourseID, Subject: g.Subject, Assignment: g.Assignment}
}

// SortRecentFirst orders grades by graded time, most recent first (ties by ID).
func SortRecentFirst(grades []Grade) {
	sort.SliceStable(grades, func(i, j int) bool {
		if !grades[i].GradedAt.Equal(grades[j].GradedAt) {
			return grades[i].GradedAt.After(grades[j].GradedAt)
		}
		return grades[i].ID < grades[j].ID
	})
}

type NewGrade struct {
	StudentID  string    `json:"student_id" validate:"required"`
	CourseID   string    `json:"course_id" validate:"required"`
	Subject    string    `json:"subject" validate:"notblank,max=50"`
	Letter     string    `json:"letter" validate:"omitempty,letter"`
	Type       Type      `json:"type" validate:"required,gradetype"`
	Assignment string    `json:"assignment" validate:"max=200"`
	Feedback   string    `json:"feedback" validate:"max=500"`
	GradedAt   time.Time `json:"graded_at"`
}

func (ng *NewGrade) Clean() {
	ng.StudentID = core.CleanString(ng.StudentID, true /* lower */)
	ng.CourseID = core.CleanString(ng.CourseID, true /* lower */)
	ng.Subject = core.CleanString(ng.Subject)
	ng.Letter = core.CleanString(ng.Letter)
	ng.Type = Type(strings.ToUpper(core.CleanString(string(ng.Type))))
	ng.Assignment = core.CleanString(ng.Assignment)
	ng.Feedback = core.CleanString(ng.Feedback)
}

// UpdateGrade changes the given fields only.
type UpdateGrade struct {
	Letter     *string    `json:"letter" validate:"omitempty,letter"`
	Type       Type       `json:"type" validate:"omitempty,gradetype"`
	Subject    string     `json:"subject" validate:"max=50"`
	Assignment *string    `json:"assignment" validate:"omitempty,max=200"`
	Feedback   *string    `json:"feedback" validate:"omitempty,max=500"`
	GradedAt   *time.Time `json:"graded_at"`
}

func (ug *UpdateGrade) Clean() {
	ug.Type = Type(strings.ToUpper(core.CleanString(string(ug.Type))))
	ug.Subject = core.CleanString(ug.Subject)
}

type UpdateFeedback struct {
	Feedback string `json:"feedback" form:"feedback" validate:"max=500"`
}

// BulkGrades is one grading sheet submission: shared metadata plus a grade per student.
// Entries map a student ID to a letter name or numeric value; blank entries are skipped.
type BulkGrades struct {
	CourseID   string            `json:"course_id" validate:"required"`
	Assignment string            `json:"assignment" validate:"notblank,max=200"`
	Subject    string            `json:"subject" validate:"notblank,max=50"`
	Type       Type              `json:"type" validate:"required,gradetype"`
	Date       time.Time         `json:"date"`
	Entries    map[string]string `json:"entries"`
}

func (bg *BulkGrades) Clean() {
	bg.CourseID = core.CleanString(bg.CourseID, true /* lower */)
	bg.Assignment = core.CleanString(bg.Assignment)
	bg.Subject = core.CleanString(bg.Subject)
	bg.Type = Type(strings.ToUpper(core.CleanString(string(bg.Type))))
}

package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

func TestBuildLeaderboard(t *testing.T) {
	students := []user.User{
		{ID: "1", FirstName: "Amani", LastName: "Zuma"},
		{ID: "2", FirstName: "Bahati", LastName: "adeyemi"},
		{ID: "3", FirstName: "Chance", LastName: "Banda"},
		{ID: "4", FirstName: "Dora", LastName: "Banda"},
		{ID: "5", FirstName: "Eli", LastName: "Mwangi"},
	}
	grades := []grade.Grade{
		{StudentID: "1", Letter: grade.LetterGood},
		{StudentID: "2", Letter: grade.LetterExcellent},
		{StudentID: "2", Letter: grade.LetterGood},
		{StudentID: "3", Letter: grade.LetterVeryGood},
		{StudentID: "4", Letter: grade.LetterExcellent},
		{StudentID: "4", Letter: grade.LetterGood},
		{StudentID: "5", Letter: grade.LetterNone},
	}

	got := BuildLeaderboard(students, grades, "3")
	require.Len(t, got, 5)

	// three 5.00 averages ordered by last then first name, then 4.00, then ungraded
	wantOrder := []string{"2", "3", "4", "1", "5"}
	for i, id := range wantOrder {
		assert.Equal(t, id, got[i].StudentID, "rank %d", i+1)
		assert.Equal(t, i+1, got[i].Rank)
	}
	assert.Equal(t, "5.00", got[0].AverageDisplay)
	assert.Equal(t, grade.NoAverage, got[4].AverageDisplay)
	assert.True(t, got[1].IsCurrent)
	assert.False(t, got[0].IsCurrent)
	assert.Equal(t, "BA", got[0].Initials)
}

func TestBuildLeaderboard_empty(t *testing.T) {
	got := BuildLeaderboard(nil, nil, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecentGrades(t *testing.T) {
	now := time.Now()
	grades := make([]grade.Grade, 0, 7)
	for i := 0; i < 7; i++ {
		grades = append(grades, grade.Grade{ID: string(rune('a' + i)), GradedAt: now.Add(time.Duration(i) * time.Hour)})
	}
	got := RecentGrades(grades, RecentGradesLimit)
	require.Len(t, got, RecentGradesLimit)
	assert.Equal(t, "g", got[0].ID)
	assert.Equal(t, "c", got[4].ID)
	assert.Equal(t, "a", grades[0].ID, "input untouched")

	assert.NotNil(t, RecentGrades(nil, RecentGradesLimit))
}

func TestUpcoming(t *testing.T) {
	now := time.Now()
	as := []assignment.Assignment{
		{ID: "past", Title: "a", DueDate: now.Add(-time.Hour)},
		{ID: "later", Title: "b", DueDate: now.Add(2 * time.Hour)},
		{ID: "now", Title: "c", DueDate: now},
		{ID: "soon", Title: "d", DueDate: now.Add(time.Hour)},
	}
	got := Upcoming(as, now, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "now", got[0].ID)
	assert.Equal(t, "soon", got[1].ID)

	assert.Len(t, Upcoming(as, now, 0), 3)
	assert.NotNil(t, Upcoming(nil, now, 0))
}

func TestExistingGrades(t *testing.T) {
	now := time.Now()
	grades := []grade.Grade{
		{ID: "1", StudentID: "s1", Assignment: "Quiz", Subject: "Math", GradedAt: now.Add(-time.Hour)},
		{ID: "2", StudentID: "s1", Assignment: "Quiz", Subject: "Math", GradedAt: now},
		{ID: "3", StudentID: "s2", Assignment: "Quiz", Subject: "English", GradedAt: now},
		{ID: "4", StudentID: "s3", Assignment: "Exam", Subject: "Math", GradedAt: now},
	}
	got := ExistingGrades(grades, "Quiz", "Math")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got["s1"].ID)
}

package grade

import (
	"math"
	"sort"
	"strconv"
)

// NoAverage is displayed when there is nothing to average.
const NoAverage = "--"

// MaxNumeric is the numeric value of the best grade.
const MaxNumeric = 6

// Numeric maps a letter onto the 2-6 scale. LetterNone and unknown letters map to 0.
func Numeric(l Letter) int {
	switch l {
	case LetterBad:
		return 2
	case LetterAverage:
		return 3
	case LetterGood:
		return 4
	case LetterVeryGood:
		return 5
	case LetterExcellent:
		return 6
	}
	return 0
}

// Average is the arithmetic mean of the positive values. ok is false when there are none.
func Average(values []int) (avg float64, ok bool) {
	var sum, n int
	for _, v := range values {
		if v <= 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// FormatAverage renders an average with two decimals, or NoAverage.
func FormatAverage(avg float64, ok bool) string {
	if !ok {
		return NoAverage
	}
	return strconv.FormatFloat(avg, 'f', 2, 64)
}

// Percentage converts a value of the 2-6 scale into a rounded percentage of the best grade.
func Percentage(value float64) int {
	return int(math.Round(value / MaxNumeric * 100))
}

func numerics(grades []Grade) []int {
	values := make([]int, 0, len(grades))
	for _, g := range grades {
		values = append(values, g.Numeric())
	}
	return values
}

// OverallAverage is the mean of every graded record, regardless of subject.
func OverallAverage(grades []Grade) (float64, bool) {
	return Average(numerics(grades))
}

type SubjectSummary struct {
	Subject        string  `json:"subject"`
	Count          int     `json:"count"` // graded records only
	Average        float64 `json:"average"`
	AverageDisplay string  `json:"average_display"`
	Percentage     int     `json:"percentage"`
	Grades         []Grade `json:"grades"` // most recent first
}

type Summary struct {
	Count          int              `json:"count"`
	Average        float64          `json:"average"`
	AverageDisplay string           `json:"average_display"`
	Percentage     int              `json:"percentage"`
	Subjects       []SubjectSummary `json:"subjects"`
}

// SubjectAverages groups grades by subject (alphabetical order).
// Subjects whose grades all lack a letter are kept with a NoAverage display.
func SubjectAverages(grades []Grade) []SubjectSummary {
	bySubject := make(map[string][]Grade)
	for _, g := range grades {
		bySubject[g.Subject] = append(bySubject[g.Subject], g)
	}

	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	summaries := make([]SubjectSummary, 0, len(subjects))
	for _, s := range subjects {
		gs := bySubject[s]
		SortRecentFirst(gs)
		avg, ok := Average(numerics(gs))
		summaries = append(summaries, SubjectSummary{
			Subject:        s,
			Count:          countGraded(gs),
			Average:        avg,
			AverageDisplay: FormatAverage(avg, ok),
			Percentage:     Percentage(avg),
			Grades:         gs,
		})
	}
	return summaries
}

// Summarize builds the dashboard summary of a student's grades.
func Summarize(grades []Grade) Summary {
	avg, ok := OverallAverage(grades)
	return Summary{
		Count:          countGraded(grades),
		Average:        avg,
		AverageDisplay: FormatAverage(avg, ok),
		Percentage:     Percentage(avg),
		Subjects:       SubjectAverages(grades),
	}
}

func countGraded(grades []Grade) int {
	var n int
	for _, g := range grades {
		if g.Numeric() > 0 {
			n++
		}
	}
	return n
}

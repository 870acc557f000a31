package grade

import (
	"testing"
	"time"
)

func TestParseLetter(t *testing.T) {
	tests := []struct {
		in      string
		want    Letter
		wantErr error
	}{
		{in: "", want: LetterNone},
		{in: "   ", want: LetterNone},
		{in: "GOOD", want: LetterGood},
		{in: " excellent ", want: LetterExcellent},
		{in: "very good", want: LetterVeryGood},
		{in: "Very-Good", want: LetterVeryGood},
		{in: "VERY_GOOD", want: LetterVeryGood},
		{in: "2", want: LetterBad},
		{in: "6", want: LetterExcellent},
		{in: "1", wantErr: ErrInvalidLetter},
		{in: "7", wantErr: ErrInvalidLetter},
		{in: "A+", wantErr: ErrInvalidLetter},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLetter(tt.in)
			if err != tt.wantErr {
				t.Fatalf("ParseLetter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLetter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortRecentFirst(t *testing.T) {
	now := time.Now()
	grades := []Grade{
		{ID: "b", GradedAt: now},
		{ID: "c", GradedAt: now.Add(time.Hour)},
		{ID: "a", GradedAt: now},
	}
	SortRecentFirst(grades)
	for i, want := range []string{"c", "a", "b"} {
		if grades[i].ID != want {
			t.Errorf("grades[%d].ID = %s, want %s", i, grades[i].ID, want)
		}
	}
}

package subject

import (
	"testing"
	"time"
)

func TestComputeGrade(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)
	completions := func(daysAgo ...int) []time.Time {
		cs := make([]time.Time, 0, len(daysAgo))
		for _, d := range daysAgo {
			cs = append(cs, now.AddDate(0, 0, -d))
		}
		return cs
	}

	tests := []struct {
		name        string
		completions []time.Time
		want        int
		wantNone    bool
	}{
		{name: "no completions", completions: nil, wantNone: true},
		{name: "ramp-up: completed today", completions: completions(0), want: 1},
		{name: "ramp-up: completed 3 days ago", completions: completions(3, 10), want: 4},
		{name: "ramp-up: completed 5 days ago", completions: completions(5, 12, 30), want: 6},
		{name: "ramp-up: completed long ago", completions: completions(42), want: 6},
		{name: "steady-state: 2 of 10 in last 7 days", completions: completions(1, 5, 10, 11, 12, 13, 14, 20, 21, 22), want: 5},
		{name: "steady-state: none in last 7 days", completions: completions(8, 9, 10, 11, 12, 13), want: 6},
		{name: "steady-state: 6 in last 7 days", completions: completions(0, 1, 2, 3, 4, 5), want: 1},
		{name: "steady-state: more than 6 in last 7 days", completions: completions(0, 0, 1, 1, 2, 2, 3, 3), want: 1},
		{name: "steady-state: day 7 still counts", completions: completions(7, 7, 7, 10, 11, 12), want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeGrade(tt.completions, now)
			if tt.wantNone {
				if got != nil {
					t.Errorf("ComputeGrade() = %d, want no grade", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ComputeGrade() = no grade, want %d", tt.want)
			}
			if *got != tt.want {
				t.Errorf("ComputeGrade() = %d, want %d", *got, tt.want)
			}
		})
	}

	t.Run("ramp-up grade never improves with inactivity", func(t *testing.T) {
		prev := 0
		for d := 0; d <= 10; d++ {
			got := ComputeGrade(completions(d), now)
			if got == nil {
				t.Fatalf("ComputeGrade() = no grade for %d day(s) ago", d)
			}
			if *got < prev {
				t.Errorf("ComputeGrade() = %d for %d day(s) ago; better than %d for fewer days", *got, d, prev)
			}
			prev = *got
		}
	})

	t.Run("grade stays within bounds", func(t *testing.T) {
		histories := [][]time.Time{
			completions(0),
			completions(100),
			completions(0, 0, 0, 0, 0, 0, 0, 0, 0, 0),
			completions(50, 60, 70, 80, 90, 100),
			completions(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11),
		}
		for _, history := range histories {
			got := ComputeGrade(history, now)
			if got == nil {
				t.Fatal("ComputeGrade() = no grade, want a grade")
			}
			if *got < 1 || *got > 6 {
				t.Errorf("ComputeGrade() = %d, want within [1, 6]", *got)
			}
		}
	})
}

func TestIsGradeStale(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.Local)
	grade := 2

	timePtr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name  string
		stats Statistics
		want  bool
	}{
		{name: "no grade", stats: Statistics{}, want: true},
		{name: "no update date", stats: Statistics{Grade: &grade}, want: true},
		{
			name:  "updated earlier today",
			stats: Statistics{Grade: &grade, GradeUpdatedDate: timePtr(now.Add(-11 * time.Hour))},
			want:  false,
		},
		{
			name:  "updated late yesterday",
			stats: Statistics{Grade: &grade, GradeUpdatedDate: timePtr(now.Add(-13 * time.Hour))},
			want:  true,
		},
		{
			name:  "updated last week",
			stats: Statistics{Grade: &grade, GradeUpdatedDate: timePtr(now.AddDate(0, 0, -7))},
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGradeStale(tt.stats, now); got != tt.want {
				t.Errorf("IsGradeStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

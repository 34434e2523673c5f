package subject

import "time"

const (
	minGrade = 1
	maxGrade = 6

	// completions below this count grade on recency; at or above, on cadence
	rampUpThreshold = 6
)

// ComputeGrade derives a 1 (best) to 6 (worst) grade from worksheet
// completion times ordered most recent first. It returns nil when there are
// no completions yet.
//
// With fewer than 6 completions the grade is 1 + the whole days since the
// most recent completion. From 6 completions on, it is 7 minus the number of
// completions within the trailing 7 days. Both clamp to [1, 6].
func ComputeGrade(completions []time.Time, now time.Time) *int {
	if len(completions) == 0 {
		return nil
	}

	var grade int
	if len(completions) < rampUpThreshold {
		d := wholeDays(now.Sub(completions[0]))
		grade = clamp(1+d, minGrade, maxGrade)
	} else {
		grade = clamp(7-completionsLast7Days(completions, now), minGrade, maxGrade)
	}
	return &grade
}

// IsGradeStale reports whether the cached grade must be recomputed before
// display: the grade is missing, or it was last updated on a different
// calendar day (local time, not elapsed hours).
func IsGradeStale(stats Statistics, now time.Time) bool {
	if stats.Grade == nil || stats.GradeUpdatedDate == nil {
		return true
	}
	y1, m1, d1 := stats.GradeUpdatedDate.In(time.Local).Date()
	y2, m2, d2 := now.In(time.Local).Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// completionsLast7Days counts completions with a whole-day difference of at
// most 7 from now.
func completionsLast7Days(completions []time.Time, now time.Time) int {
	var n int
	for _, c := range completions {
		if wholeDays(now.Sub(c)) <= 7 {
			n++
		}
	}
	return n
}

func wholeDays(d time.Duration) int {
	days := int(d.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

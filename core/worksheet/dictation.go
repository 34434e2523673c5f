package worksheet

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Dictation answers are compared leniently: spelling must match, punctuation
// and capitalization must not get in the way of a child typing a sentence.

var (
	punctReplacer = strings.NewReplacer(
		".", "", ",", "", "!", "", "?", "", ";", "", ":", "",
		"—", "", "–", "", "-", "",
		"'", "", "‘", "", "’", "",
		`"`, "", "“", "", "”", "",
		"`", "", "´", "",
	)
	spaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize lowercases the text, strips punctuation (including typographic
// quotes and dashes) and collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = punctReplacer.Replace(s)
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FuzzyMatch reports whether two texts are equal after normalization.
func FuzzyMatch(expected, actual string) bool {
	return Normalize(expected) == Normalize(actual)
}

// WordDiff is one mismatched word position of a dictation; Actual is empty
// when the student's text ran out of words before the reference did.
type WordDiff struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// DiffWords compares the student's text against the reference word by word
// after normalization and returns the mismatched positions. The comparison is
// strictly positional and bounded by the reference: a dropped word early in
// the text shifts everything after it, and words past the end of the
// reference are ignored.
func DiffWords(expected, actual string) []WordDiff {
	expWords := strings.Fields(Normalize(expected))
	actWords := strings.Fields(Normalize(actual))

	diffs := make([]WordDiff, 0)
	for i, exp := range expWords {
		var act string
		if i < len(actWords) {
			act = actWords[i]
		}
		if exp != act {
			diffs = append(diffs, WordDiff{Expected: exp, Actual: act})
		}
	}
	return diffs
}

// Similarity returns a 0..1 resemblance ratio between the normalized texts.
// It is a display hint for near-miss feedback, not a grading input.
func Similarity(expected, actual string) float64 {
	a := strings.Split(Normalize(expected), "")
	b := strings.Split(Normalize(actual), "")
	return difflib.NewMatcher(a, b).QuickRatio()
}

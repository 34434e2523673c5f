package worksheet

import (
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type (
	// Worksheet is one practice session: a batch of generated exercises a
	// student works through and submits once.
	Worksheet struct {
		ID          string     `json:"id"`
		StudentID   string     `json:"student_id"`
		Subject     string     `json:"subject"`
		Status      string     `json:"status"`
		Score       *int       `json:"score,omitempty"`
		CreatedAt   time.Time  `json:"created_at"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`

		Exercises []Exercise `json:"exercises,omitempty"`
	}

	// Exercise is one generated task of a worksheet. Markdown is both the
	// renderable content and the answer key; UserInput is the baked rendering
	// of the student's last incorrect submission, kept for trainer review.
	Exercise struct {
		ID             string `json:"id"`
		WorksheetID    string `json:"worksheet_id"`
		TopicID        string `json:"topic_id"`
		TopicShortName string `json:"topic_short_name"`
		Markdown       string `json:"markdown"`
		AudioURL       string `json:"audio_url,omitempty"`
		UserInput      string `json:"user_input,omitempty"`
		Attempt        int    `json:"attempt"`
		Order          int    `json:"order"`

		// render tokens, filled on reads for fill-gap exercises
		Parts []Part `json:"parts,omitempty"`
	}

	// ExerciseResult is the grading outcome of one exercise of a submission.
	// Diff and Similarity are only set for dictation exercises.
	ExerciseResult struct {
		ExerciseID     string     `json:"exercise_id"`
		Correct        bool       `json:"correct"`
		CorrectAnswers []string   `json:"correct_answers"`
		GivenAnswers   []string   `json:"given_answers"`
		Diff           []WordDiff `json:"diff,omitempty"`
		Similarity     *float64   `json:"similarity,omitempty"`
	}

	// SubmitResult is the outcome of submitting a whole worksheet.
	SubmitResult struct {
		Worksheet Worksheet        `json:"worksheet"`
		Score     int              `json:"score"`
		Results   []ExerciseResult `json:"results"`
	}

	// ExerciseReview pairs a completed exercise with its decoded answer key
	// for trainers. Diff and Similarity are recomputed for incorrect
	// dictations from the recorded UserInput.
	ExerciseReview struct {
		Exercise       Exercise   `json:"exercise"`
		CorrectAnswers []string   `json:"correct_answers"`
		Diff           []WordDiff `json:"diff,omitempty"`
		Similarity     *float64   `json:"similarity,omitempty"`
	}
)

// IsDictation reports whether the exercise grades as a dictation.
func (ex *Exercise) IsDictation() bool { return IsDictationMarkdown(ex.Markdown) }

type (
	// QueryFilter is a worksheet search criteria set.
	QueryFilter struct {
		StudentID string `query:"student_id"`
		Subject   string `query:"subject"`
		Status    string `query:"status"`
	}
)

// IsEmpty checks if the filter is empty.
func (filter *QueryFilter) IsEmpty() bool {
	return filter.StudentID == "" && filter.Subject == "" && filter.Status == ""
}

// Clean sanitizes the filter values.
func (filter *QueryFilter) Clean() {
	filter.StudentID = core.CleanString(filter.StudentID)
	filter.Subject = core.CleanString(filter.Subject, true)
	filter.Status = core.CleanString(filter.Status, true)
}

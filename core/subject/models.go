package subject

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

type (
	// TopicAssignment is a student's per-topic exercise quota.
	// At most one assignment per TopicID exists within a SubjectData record.
	TopicAssignment struct {
		TopicID string `json:"topic_id"`
		Count   int    `json:"count"`
	}

	// Statistics caches per-subject completion figures. Grade is a derived
	// cache recomputed lazily; it is not authoritative and may be momentarily
	// stale.
	Statistics struct {
		WorksheetsLast7Days int        `json:"worksheets_last_7_days"`
		LastWorksheetDate   *time.Time `json:"last_worksheet_date,omitempty"`
		Grade               *int       `json:"grade,omitempty"`
		GradeUpdatedDate    *time.Time `json:"grade_updated_date,omitempty"`
	}

	// SubjectData holds a student's topic assignments and statistics for one
	// subject. One per (student, subject).
	SubjectData struct {
		ID               string            `json:"id"`
		StudentID        string            `json:"student_id"`
		Subject          string            `json:"subject"`
		TopicAssignments []TopicAssignment `json:"topic_assignments"`
		Statistics       Statistics        `json:"statistics"`
		CreatedAt        time.Time         `json:"created_at"` // UTC
		UpdatedAt        time.Time         `json:"updated_at"` // UTC
	}
)

// AssignTopic contains information needed to assign a topic to a student.
type AssignTopic struct {
	TopicID string `json:"topic_id" validate:"required"`
	Count   int    `json:"count" validate:"required,min=1,max=20"`
}

func (at *AssignTopic) Validate(validate *validator.Validate) error {
	at.TopicID = core.CleanString(at.TopicID)
	return validate.Struct(at)
}

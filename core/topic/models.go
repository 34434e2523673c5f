package topic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// Exercise types
const (
	TypeFillGaps  = "FILL_GAPS"
	TypeDictation = "DICTATION"
)

var AllTypes = []string{TypeFillGaps, TypeDictation}

// Topic is a trainer-authored template from which exercises are generated.
// Prompt is opaque text handed to the text generation service.
type Topic struct {
	ID                   string    `json:"id"`
	Subject              string    `json:"subject"`
	ShortName            string    `json:"short_name"`
	TaskDescription      string    `json:"task_description"`
	Prompt               string    `json:"prompt"`
	Type                 string    `json:"type"`
	DefaultExerciseCount int       `json:"default_exercise_count"`
	CreatedBy            string    `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
}

func (t *Topic) IsDictation() bool {
	return t.Type == TypeDictation
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	Subject              string `json:"subject" validate:"required"`
	ShortName            string `json:"short_name" validate:"required"`
	TaskDescription      string `json:"task_description"`
	Prompt               string `json:"prompt" validate:"required"`
	Type                 string `json:"type" validate:"required,exercisetype"`
	DefaultExerciseCount int    `json:"default_exercise_count" validate:"omitempty,min=1,max=20"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Subject = core.CleanString(nt.Subject, true /* lower */)
	nt.ShortName = core.CleanString(nt.ShortName)
	nt.TaskDescription = core.CleanString(nt.TaskDescription)
	nt.Prompt = core.CleanString(nt.Prompt)
	nt.Type = core.CleanString(nt.Type)
	return validate.Struct(nt)
}

// UpdateTopic defines what information may be provided to modify an existing Topic.
type UpdateTopic struct {
	Subject              string `json:"subject"`
	ShortName            string `json:"short_name"`
	TaskDescription      string `json:"task_description"`
	Prompt               string `json:"prompt"`
	Type                 string `json:"type" validate:"omitempty,exercisetype"`
	DefaultExerciseCount int    `json:"default_exercise_count" validate:"omitempty,min=1,max=20"`
}

func (ut *UpdateTopic) Validate(origTpc Topic, validate *validator.Validate) error {
	subject := core.CleanString(ut.Subject, true /* lower */)
	if subject != "" {
		ut.Subject = subject
	} else {
		ut.Subject = origTpc.Subject
	}

	shortName := core.CleanString(ut.ShortName)
	if shortName != "" {
		ut.ShortName = shortName
	} else {
		ut.ShortName = origTpc.ShortName
	}

	taskDescription := core.CleanString(ut.TaskDescription)
	if taskDescription != "" {
		ut.TaskDescription = taskDescription
	} else {
		ut.TaskDescription = origTpc.TaskDescription
	}

	prompt := core.CleanString(ut.Prompt)
	if prompt != "" {
		ut.Prompt = prompt
	} else {
		ut.Prompt = origTpc.Prompt
	}

	typ := core.CleanString(ut.Type)
	if typ != "" {
		ut.Type = typ
	} else {
		ut.Type = origTpc.Type
	}

	if ut.DefaultExerciseCount == 0 {
		ut.DefaultExerciseCount = origTpc.DefaultExerciseCount
	}

	return validate.Struct(ut)
}

type QueryFilter struct {
	Subject   string `query:"subject"`
	Type      string `query:"type"`
	Search    string `query:"search"`
	CreatedBy string `query:"created_by"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Subject == "" && qf.Type == "" && qf.Search == "" && qf.CreatedBy == ""
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

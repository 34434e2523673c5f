package core

import "github.com/pkg/errors"

// FieldError pins a validation failure to one request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries a user-facing message plus the per-field
// breakdown; the API layer renders it as a 400 instead of a 500.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError builds a ValidationError blaming a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown flags an unrecoverable integrity problem. Handlers return it to
// ask the server to stop serving; see IsShutdown.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

package core

import "github.com/pkg/errors"

// FieldError pins an error message to a specific input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when user-provided input fails validation;
// it is never retried automatically and maps to a 400 at the API boundary.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

// NewShutdownError signals that the integrity of the process is compromised
// and the server should gracefully shut down.
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

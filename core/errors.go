package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the request field that caused it.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a request fault the API renders as a 400, with a
// field-to-message map when Fields is set.
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

// shutdown signals that service integrity is compromised and the server
// should stop taking requests.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks whether err (or its cause) requests a graceful shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

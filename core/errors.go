package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

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

// RESTError is an API error carrying a machine readable code and the HTTP status to respond with.
type RESTError struct {
	Code    string
	Message string
	Status  int
	Err     error // underlying cause, never sent to clients
}

func NewRESTError(code, message string, status int) *RESTError {
	return &RESTError{Code: code, Message: message, Status: status}
}

// Errorf builds a RESTError with a formatted message.
func Errorf(code string, status int, format string, args ...interface{}) *RESTError {
	return NewRESTError(code, fmt.Sprintf(format, args...), status)
}

// WithCause attaches the underlying error.
func (err *RESTError) WithCause(cause error) *RESTError {
	err.Err = cause
	return err
}

func (err *RESTError) Error() string {
	if err.Err != nil {
		return err.Code + ": " + err.Message + ": " + err.Err.Error()
	}
	return err.Code + ": " + err.Message
}

// AsRESTError returns the RESTError at the root of err, if any.
func AsRESTError(err error) (*RESTError, bool) {
	restErr, ok := errors.Cause(err).(*RESTError)
	return restErr, ok
}

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

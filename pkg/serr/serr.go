// Package serr defines the stable error codes surfaced by the schema engine.
// Codes never change between releases; clients key retry and display logic
// off them, not off the message text.
package serr

import (
	"errors"
	"fmt"
)

// Error codes. The 1xx block matches the public API error space.
const (
	InternalError        = 1
	InvalidClassName     = 103
	InvalidFieldName     = 105
	InvalidJSON          = 107
	IncorrectType        = 111
	OperationForbidden   = 119
	FieldCannotBeAdded   = 131
	TooManyGeoPoints     = 132
	InvalidCLPOperation  = 133
	InvalidCLPValue      = 134
	RequiredFieldMissing = 135
	ClassAlreadyExists   = 136
	FieldAlreadyExists   = 137
	FieldDoesNotExist    = 138
	InvalidFieldType     = 139
	ScriptFailure        = 141
)

// Error is a coded, user-visible error.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a coded error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the stable code from err, or InternalError when err is not
// a coded error.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}

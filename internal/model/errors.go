package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes model errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedArg indicates Set received a value it cannot apply.
	ErrCodeUnsupportedArg ErrorCode = "UNSUPPORTED_ARGUMENT"

	// ErrCodeUnknownField indicates a patch named a field the state lacks.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeDecode indicates a patch value could not be converted to the
	// field's type.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"

	// ErrCodeUnknownAction indicates a call to an action that was never bound.
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"
)

// Error is returned for programmer errors in model usage.
type Error struct {
	Code    ErrorCode
	Model   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

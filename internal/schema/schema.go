// Package schema validates whole store snapshots.
//
// Only the pass/fail contract matters to callers: Validate returns nil or a
// *ValidationError listing what failed. Two implementations are provided:
// CUE (constraints written in CUE) and Struct (go-playground struct tags on a
// Go type).
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Issue codes (S100-S199).
const (
	ErrCodeConstraint = "S100" // value violates a constraint
	ErrCodeType       = "S101" // value has the wrong type
	ErrCodeIncomplete = "S102" // required value missing
	ErrCodeEncode     = "S103" // snapshot cannot be represented in the schema language
)

// Validator checks a snapshot.
type Validator interface {
	Validate(ctx context.Context, state map[string]any) error
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, state map[string]any) error

// Validate calls f.
func (f Func) Validate(ctx context.Context, state map[string]any) error {
	return f(ctx, state)
}

// Any accepts every snapshot.
var Any Validator = Func(func(context.Context, map[string]any) error { return nil })

// Issue is one failed check.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// String renders the issue as "[code] field: message".
func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s", i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Code, i.Field, i.Message)
}

// ValidationError reports a snapshot that failed its schema.
type ValidationError struct {
	Schema string  `json:"schema"`
	Issues []Issue `json:"issues"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(parts, "; "))
}

// IsValidationError returns true if err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

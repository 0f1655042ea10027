package container

import (
	"fmt"
)

// InitError is logged when an initializer fails or panics.
// It is never returned from Reload; it exists so log handlers and tests can
// recognise the failure kind.
type InitError struct {
	// Container is the name of the container whose initializer failed.
	Container string

	// Panic is true when the initializer panicked rather than returning an error.
	Panic bool

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	if e.Panic {
		return fmt.Sprintf("initialize %s: panic: %v", e.Container, e.Err)
	}
	return fmt.Sprintf("initialize %s: %v", e.Container, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}

// TypeMismatchError is returned by Resolve when a key is already bound to a
// container of a different state type.
type TypeMismatchError struct {
	Key      string
	Existing string
	Wanted   string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("container %s holds %s, requested %s", e.Key, e.Existing, e.Wanted)
}

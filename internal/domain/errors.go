package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is against the typed errors below.
var (
	// ErrInvalid matches every *ValidationError.
	ErrInvalid = errors.New("invalid fields")

	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage failure")

	// ErrConflict matches a *StorageError caused by a unique constraint.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a single field that failed validation. It is
// caller-correctable and never retried.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Reason)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// NotFoundError reports that an entity which had to exist does not.
type NotFoundError struct {
	Kind Kind
	ID   any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError wraps an engine-level failure with the operation and kind
// that produced it.
type StorageError struct {
	Op       string
	Kind     Kind
	Err      error
	Conflict bool
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *StorageError) Unwrap() error { return e.Err }

// Is implements errors.Is support.
func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorage:
		return true
	case ErrConflict:
		return e.Conflict
	}
	return false
}

// Package errors provides custom error types for the intake pipeline.
// These errors enable programmatic error checking at the orchestrator
// boundary, where individual record failures must be distinguished from
// fatal precondition failures.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the intake pipeline.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyInput indicates that a run was started with no rows.
	ErrEmptyInput = errors.New("empty input")

	// ErrStoreUnavailable indicates that the backing store rejected a call.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	Resource string
	Key      string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %s not found", e.Resource, e.Key)
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// StoreError represents a failure from the backing keyed store.
type StoreError struct {
	Op       string // "find", "insert", "update"
	Resource string // "record", "contact", "upload"
	Key      string
	Err      error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("failed to %s %s %s: %v", e.Op, e.Resource, e.Key, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Resource, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// WrapStore wraps an error from a store call with operation context.
// Returns nil if err is nil.
func WrapStore(op, resource, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Resource: resource, Key: key, Err: err}
}

// IsNotFound checks if an error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error indicates invalid input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStore checks if an error originated from the backing store.
func IsStore(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

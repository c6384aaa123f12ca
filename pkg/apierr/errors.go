// Package apierr is the ambient error-handling layer shared by
// pkg/api and pkg/orchestrator's callers: a small set of sentinel
// errors plus a typed validation error. Mapping either into an HTTP
// response is done by pkg/api's mapServiceError.
//
// Grounded on the teacher's `pkg/services/errors.go` sentinel+typed-error
// shape and `pkg/api/errors.go`'s `mapServiceError` switchboard,
// generalized here to this module's domain (reviews and decisions
// rather than alert sessions).
package apierr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a review_id has no matching decision.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when a request fails structural or
	// semantic validation before it reaches the orchestrator.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a request conflicts with the
	// pipeline's current state (e.g. a malformed Merkle proof supplied
	// for verification).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when a dependency the request needs
	// (the shared store, the contract validator) is not currently usable.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError wraps a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError builds a *ValidationError as a plain error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

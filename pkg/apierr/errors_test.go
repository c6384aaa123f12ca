package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("pr_number", "must be positive")
	assert.EqualError(t, err, "validation error on field 'pr_number': must be positive")
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewValidationError("owner", "required")))
	assert.False(t, IsValidationError(ErrNotFound))
	assert.False(t, IsValidationError(fmt.Errorf("wrapped: %w", ErrConflict)))
}

func TestIsValidationError_WrappedStillDetected(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", NewValidationError("repo", "required"))
	assert.True(t, IsValidationError(wrapped))
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNotFound, ErrInvalidInput))
	assert.False(t, errors.Is(ErrConflict, ErrUnavailable))
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the rating pipeline.
var (
	// ErrNotFound: the external catalog has no such game.
	ErrNotFound = errors.New("game not found")
	// ErrStorage: the transaction failed and was rolled back; safe to retry.
	ErrStorage = errors.New("storage failure")
	// ErrExternal: the external catalog was unreachable or returned garbage.
	ErrExternal = errors.New("external catalog failure")
	// ErrUnrated: no user ratings and no external baseline; nothing to publish.
	ErrUnrated = errors.New("game has no ratings")
)

// ValidationError rejects a request before any I/O happens.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// IsRetryable reports whether the caller may retry the same submission.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrExternal)
}

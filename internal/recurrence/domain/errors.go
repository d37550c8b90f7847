package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of every *ValidationError.
	ErrValidation = errors.New("invalid recurrence input")

	// ErrCorruptRecurrenceState means an event is flagged recurring but its
	// rule is missing or no longer valid. It is never silently downgraded to
	// a single occurrence.
	ErrCorruptRecurrenceState = errors.New("corrupt recurrence state")

	ErrEventNotFound      = errors.New("event not found")
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrNotRecurring       = errors.New("event is not recurring")
)

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidReminder is returned for malformed reminder input.
	ErrInvalidReminder = errors.New("invalid reminder")
	// ErrDuplicateReminder is returned when an active reminder already holds the dedup key.
	ErrDuplicateReminder = errors.New("reminder already scheduled")
	// ErrInvalidState is returned for a transition the reminder's status does not allow.
	ErrInvalidState = errors.New("invalid reminder state")
	// ErrReminderNotFound is returned when a reminder does not exist.
	ErrReminderNotFound = errors.New("reminder not found")
)

// DuplicateReminderError names the dedup key that is already taken.
type DuplicateReminderError struct {
	Key DedupKey
}

func (e *DuplicateReminderError) Error() string {
	return fmt.Sprintf("reminder already scheduled for %s", e.Key)
}

func (e *DuplicateReminderError) Unwrap() error { return ErrDuplicateReminder }

// InvalidStateError reports an action rejected by the reminder's status.
type InvalidStateError struct {
	ReminderID uuid.UUID
	Status     Status
	Action     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s reminder %s in status %s", e.Action, e.ReminderID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// TransientError marks a delivery failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient delivery error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent delivery error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was classified permanent. Anything else,
// including unclassified errors, is retried.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

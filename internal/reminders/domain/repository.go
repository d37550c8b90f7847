package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists reminders. Every status change is a conditional update
// on the expected current status; the bool results report whether the row
// actually moved.
type Repository interface {
	// Insert stores a new reminder, returning *DuplicateReminderError when an
	// active reminder already holds its dedup key.
	Insert(ctx context.Context, r *Reminder) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	// FindActiveByDedupKey returns the non-cancelled reminder holding key, or nil.
	FindActiveByDedupKey(ctx context.Context, key DedupKey) (*Reminder, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Reminder, error)

	// FindDue lists PENDING reminders due at now whose backoff has elapsed,
	// oldest remindAt first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error)
	// Claim moves a due reminder from PENDING to PROCESSING. It returns nil
	// when the reminder was not claimable.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (*Claim, error)
	// MarkSent moves a claimed reminder from PROCESSING to SENT.
	MarkSent(ctx context.Context, claim Claim, now time.Time) (bool, error)
	// Release returns a claimed reminder to PENDING for another attempt at
	// availableAt, incrementing its retry count.
	Release(ctx context.Context, claim Claim, availableAt time.Time, lastError string, now time.Time) (bool, error)
	// MarkFailed moves a claimed reminder from PROCESSING to FAILED.
	MarkFailed(ctx context.Context, claim Claim, lastError string, now time.Time) (bool, error)
	// Cancel moves a PENDING or PROCESSING reminder to CANCELLED.
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	CancelPendingForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error)
	PendingOccurrenceStarts(ctx context.Context, eventID uuid.UUID) ([]time.Time, error)

	// ReclaimAbandoned resets reminders claimed before claimedBefore. Each
	// reclaim counts as a retry; rows reaching maxRetries become FAILED.
	ReclaimAbandoned(ctx context.Context, claimedBefore time.Time, maxRetries int, now time.Time) (reclaimed, failed int64, err error)
	// DeleteTerminalOlderThan purges SENT, FAILED and CANCELLED reminders last
	// updated before cutoff.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
}

// Claim identifies one PROCESSING claim on a reminder. Settle writes only
// apply while the row still carries the claim's ClaimedAt, so a claim that
// was reclaimed and handed to another dispatcher cannot settle the new one.
type Claim struct {
	ReminderID uuid.UUID
	ClaimedAt  time.Time
	// RetryCount is the row's retry count at claim time.
	RetryCount int
}

// Deliverer hands a reminder to the notification channel. Errors should be
// classified with Transient or Permanent; unclassified errors are retried.
type Deliverer interface {
	Deliver(ctx context.Context, r *Reminder) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, r *Reminder) error

func (f DelivererFunc) Deliver(ctx context.Context, r *Reminder) error { return f(ctx, r) }

package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OccurrenceReminders is the part of the reminder store that series
// mutations keep consistent.
type OccurrenceReminders interface {
	// PendingOccurrenceStarts lists the distinct occurrence starts targeted
	// by PENDING reminders of the event.
	PendingOccurrenceStarts(ctx context.Context, eventID uuid.UUID) ([]time.Time, error)
	// CancelPendingForOccurrence cancels PENDING reminders of one occurrence.
	CancelPendingForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error)
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
}

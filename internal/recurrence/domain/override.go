package domain

import (
	"time"

	"github.com/google/uuid"
)

// Override is a per-occurrence exception. It is keyed by the occurrence's
// original start and never changes which rule generated the occurrence.
type Override struct {
	EventID       uuid.UUID
	OriginalStart time.Time
	// Start and End hold the replacement times; zero when Cancelled.
	Start     time.Time
	End       time.Time
	Cancelled bool
	UpdatedAt time.Time
}

// NewReschedule moves one occurrence to [start, end].
func NewReschedule(eventID uuid.UUID, originalStart, start, end, now time.Time) (Override, error) {
	if start.IsZero() {
		return Override{}, invalid("startAt", "is required")
	}
	if end.Before(start) {
		return Override{}, invalid("endAt", "must not be before startAt")
	}
	return Override{
		EventID:       eventID,
		OriginalStart: originalStart.Truncate(time.Millisecond).UTC(),
		Start:         start.Truncate(time.Millisecond).UTC(),
		End:           end.Truncate(time.Millisecond).UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

// NewCancellation removes one occurrence from the series.
func NewCancellation(eventID uuid.UUID, originalStart, now time.Time) Override {
	return Override{
		EventID:       eventID,
		OriginalStart: originalStart.Truncate(time.Millisecond).UTC(),
		Cancelled:     true,
		UpdatedAt:     now.UTC(),
	}
}

// OccurrenceKey is the lookup key for an occurrence's original start.
func OccurrenceKey(t time.Time) int64 {
	return t.UnixMilli()
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository persists anchor events.
type EventRepository interface {
	Save(ctx context.Context, event *Event) error
	// FindByID returns ErrEventNotFound when the event does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// ListInWindow returns the events that may have an occurrence in window:
	// single events overlapping it and recurring events whose anchor or a
	// rescheduled occurrence starts no later than its end. Ordered by anchor
	// start.
	ListInWindow(ctx context.Context, window Window) ([]*Event, error)
	// Delete removes the event; rules, overrides and reminders cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}

// RuleRepository persists the single rule owned by an event.
type RuleRepository interface {
	Save(ctx context.Context, eventID uuid.UUID, rule Rule, now time.Time) error
	// FindByEventID returns nil, nil when the event has no rule. A stored
	// rule that cannot be decoded yields ErrCorruptRecurrenceState.
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*Rule, error)
	Delete(ctx context.Context, eventID uuid.UUID) error
}

// OverrideRepository persists per-occurrence exceptions.
type OverrideRepository interface {
	// Save upserts on (eventID, originalStart).
	Save(ctx context.Context, override Override) error
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]Override, error)
	Delete(ctx context.Context, eventID uuid.UUID, originalStart time.Time) error
	DeleteByEventID(ctx context.Context, eventID uuid.UUID) error
}

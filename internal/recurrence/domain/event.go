package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

// Event is the anchor event a recurrence rule belongs to.
type Event struct {
	sharedDomain.BaseEntity
	title     string
	anchor    Anchor
	recurring bool
}

// NewEvent creates a non-recurring event.
func NewEvent(title string, anchor Anchor, now time.Time) (*Event, error) {
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	return &Event{
		BaseEntity: sharedDomain.NewBaseEntity(now),
		title:      title,
		anchor:     anchor,
	}, nil
}

// RehydrateEvent recreates an event from persisted state.
func RehydrateEvent(id uuid.UUID, title string, anchor Anchor, recurring bool, createdAt, updatedAt time.Time) *Event {
	return &Event{
		BaseEntity: sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		title:      title,
		anchor:     anchor,
		recurring:  recurring,
	}
}

func (e *Event) Title() string     { return e.title }
func (e *Event) Anchor() Anchor    { return e.anchor }
func (e *Event) IsRecurring() bool { return e.recurring }

// MarkRecurring flags the event as owning a rule.
func (e *Event) MarkRecurring(now time.Time) {
	e.recurring = true
	e.Touch(now)
}

// ClearRecurring turns the event back into a single instance.
func (e *Event) ClearRecurring(now time.Time) {
	e.recurring = false
	e.Touch(now)
}

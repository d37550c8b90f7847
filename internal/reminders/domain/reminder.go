package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Status is a reminder's position in the dispatch state machine.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether a user may still cancel the reminder.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Channel is the notification channel a reminder is delivered on.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush}
}

// IsValid reports whether c is a supported channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// DedupKey identifies reminders that would fire for the same occurrence, on
// the same channel, in the same minute.
type DedupKey string

// Reminder is a notification scheduled for one event occurrence.
type Reminder struct {
	ID      uuid.UUID
	EventID uuid.UUID
	// OccurrenceStart is the original start of the targeted occurrence. It is
	// empty for non-recurring events.
	OccurrenceStart mo.Option[time.Time]
	RemindAt        time.Time
	Channel         Channel
	Status          Status
	RetryCount      int
	ClaimedAt       *time.Time
	AvailableAt     *time.Time
	SentAt          *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewReminder creates a PENDING reminder.
func NewReminder(eventID uuid.UUID, occurrenceStart mo.Option[time.Time], remindAt time.Time, channel Channel, now time.Time) (*Reminder, error) {
	if eventID == uuid.Nil {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidReminder)
	}
	if remindAt.IsZero() {
		return nil, fmt.Errorf("%w: remindAt is required", ErrInvalidReminder)
	}
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidReminder, channel)
	}

	occ := mo.None[time.Time]()
	if at, ok := occurrenceStart.Get(); ok {
		occ = mo.Some(truncate(at))
	}
	now = truncate(now)

	return &Reminder{
		ID:              uuid.New(),
		EventID:         eventID,
		OccurrenceStart: occ,
		RemindAt:        truncate(remindAt),
		Channel:         channel,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// DedupKey returns the reminder's minute-granularity dedup key.
func (r *Reminder) DedupKey() DedupKey {
	return NewDedupKey(r.EventID, r.OccurrenceStart, r.RemindAt, r.Channel)
}

// NewDedupKey builds the key from (event, occurrence, remindAt floored to the
// minute, channel).
func NewDedupKey(eventID uuid.UUID, occurrenceStart mo.Option[time.Time], remindAt time.Time, channel Channel) DedupKey {
	occ := "-"
	if at, ok := occurrenceStart.Get(); ok {
		occ = strconv.FormatInt(at.UnixMilli(), 10)
	}
	minute := remindAt.UTC().Truncate(time.Minute).UnixMilli()
	return DedupKey(fmt.Sprintf("%s|%s|%d|%s", eventID, occ, minute, channel))
}

// Due reports whether the dispatcher may claim the reminder at now.
func (r *Reminder) Due(now time.Time) bool {
	if r.Status != StatusPending || r.RemindAt.After(now) {
		return false
	}
	return r.AvailableAt == nil || !r.AvailableAt.After(now)
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Preset is a fixed reminder offset before an occurrence starts.
type Preset string

const (
	Preset15m Preset = "15m"
	Preset1h  Preset = "1h"
	Preset1d  Preset = "1d"
)

// Offset is the absolute lead time of the preset. One day is exactly 1440
// minutes, regardless of DST transitions in between.
func (p Preset) Offset() (time.Duration, bool) {
	switch p {
	case Preset15m:
		return 15 * time.Minute, true
	case Preset1h:
		return 60 * time.Minute, true
	case Preset1d:
		return 1440 * time.Minute, true
	}
	return 0, false
}

// RemindAt returns the fire time for an occurrence starting at start.
func (p Preset) RemindAt(start time.Time) (time.Time, error) {
	offset, ok := p.Offset()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidReminder, p)
	}
	return start.Add(-offset), nil
}

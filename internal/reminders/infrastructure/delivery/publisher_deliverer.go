// Package delivery adapts notification brokers to the reminder Deliverer port.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// RoutingKey returns the broker routing key for a channel.
func RoutingKey(channel domain.Channel) string {
	return "reminder." + string(channel)
}

// Notification is the JSON body published for a due reminder.
type Notification struct {
	ReminderID      uuid.UUID  `json:"reminder_id"`
	EventID         uuid.UUID  `json:"event_id"`
	OccurrenceStart *time.Time `json:"occurrence_start,omitempty"`
	RemindAt        time.Time  `json:"remind_at"`
	Channel         string     `json:"channel"`
	Attempt         int        `json:"attempt"`
}

// NewNotification builds the payload for r.
func NewNotification(r *domain.Reminder) Notification {
	n := Notification{
		ReminderID: r.ID,
		EventID:    r.EventID,
		RemindAt:   r.RemindAt,
		Channel:    string(r.Channel),
		Attempt:    r.RetryCount + 1,
	}
	if at, ok := r.OccurrenceStart.Get(); ok {
		n.OccurrenceStart = &at
	}
	return n
}

// PublisherDeliverer hands reminders to a broker. The broker's consumers own
// fan-out, user preferences and suppression.
type PublisherDeliverer struct {
	publisher eventbus.Publisher
}

// NewPublisherDeliverer creates a deliverer publishing through p.
func NewPublisherDeliverer(p eventbus.Publisher) *PublisherDeliverer {
	return &PublisherDeliverer{publisher: p}
}

// Deliver publishes the notification. Broker failures are transient.
func (d *PublisherDeliverer) Deliver(ctx context.Context, r *domain.Reminder) error {
	payload, err := json.Marshal(NewNotification(r))
	if err != nil {
		return domain.Permanent(fmt.Errorf("encode notification: %w", err))
	}
	if err := d.publisher.Publish(ctx, RoutingKey(r.Channel), payload); err != nil {
		return domain.Transient(fmt.Errorf("publish %s: %w", RoutingKey(r.Channel), err))
	}
	return nil
}

package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/google/uuid"
)

// ReminderDTO is a data transfer object for reminders.
type ReminderDTO struct {
	ID              uuid.UUID  `json:"id"`
	EventID         uuid.UUID  `json:"event_id"`
	OccurrenceStart *time.Time `json:"occurrence_start,omitempty"`
	RemindAt        time.Time  `json:"remind_at"`
	Channel         string     `json:"channel"`
	Status          string     `json:"status"`
	RetryCount      int        `json:"retry_count"`
	LastError       string     `json:"last_error,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
}

// ToDTO converts a reminder for presentation.
func ToDTO(r *domain.Reminder) ReminderDTO {
	dto := ReminderDTO{
		ID:         r.ID,
		EventID:    r.EventID,
		RemindAt:   r.RemindAt,
		Channel:    string(r.Channel),
		Status:     string(r.Status),
		RetryCount: r.RetryCount,
		LastError:  r.LastError,
		SentAt:     r.SentAt,
	}
	if at, ok := r.OccurrenceStart.Get(); ok {
		dto.OccurrenceStart = &at
	}
	return dto
}

// ListRemindersQuery contains the parameters for listing an event's reminders.
type ListRemindersQuery struct {
	EventID uuid.UUID
	// Status optionally restricts the result to one status.
	Status domain.Status
}

// ListRemindersHandler handles the ListRemindersQuery.
type ListRemindersHandler struct {
	repo domain.Repository
}

// NewListRemindersHandler creates a new ListRemindersHandler.
func NewListRemindersHandler(repo domain.Repository) *ListRemindersHandler {
	return &ListRemindersHandler{repo: repo}
}

// Handle returns the event's reminders ordered by fire time.
func (h *ListRemindersHandler) Handle(ctx context.Context, query ListRemindersQuery) ([]ReminderDTO, error) {
	reminders, err := h.repo.ListByEvent(ctx, query.EventID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ReminderDTO, 0, len(reminders))
	for _, r := range reminders {
		if query.Status != "" && r.Status != query.Status {
			continue
		}
		dtos = append(dtos, ToDTO(r))
	}
	return dtos, nil
}

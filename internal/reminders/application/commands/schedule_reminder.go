package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// OccurrenceLookup resolves the occurrence a reminder targets. It returns the
// key stored on the reminder (empty for non-recurring events) and the
// occurrence's resolved start.
type OccurrenceLookup interface {
	LookupOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart mo.Option[time.Time]) (mo.Option[time.Time], time.Time, error)
}

// ScheduleReminderCommand schedules one reminder. Exactly one of RemindAt and
// Preset must be set; a preset is applied to the occurrence's resolved start.
type ScheduleReminderCommand struct {
	EventID         uuid.UUID
	OccurrenceStart mo.Option[time.Time]
	RemindAt        time.Time
	Preset          domain.Preset
	Channel         domain.Channel
}

// ScheduleResult is the stored reminder. Late is set when it fires after the
// occurrence has started; such reminders are kept, not rejected.
type ScheduleResult struct {
	Reminder *domain.Reminder
	Late     bool
}

// ScheduleReminderHandler handles reminder creation.
type ScheduleReminderHandler struct {
	repo   domain.Repository
	lookup OccurrenceLookup
	uow    sharedApplication.UnitOfWork
	clock  sharedDomain.Clock
}

// NewScheduleReminderHandler creates a new ScheduleReminderHandler.
func NewScheduleReminderHandler(repo domain.Repository, lookup OccurrenceLookup, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *ScheduleReminderHandler {
	return &ScheduleReminderHandler{repo: repo, lookup: lookup, uow: uow, clock: clock}
}

// Handle validates the target occurrence and inserts a PENDING reminder,
// returning *domain.DuplicateReminderError when an active reminder already
// fires for the same occurrence and channel in the same minute.
func (h *ScheduleReminderHandler) Handle(ctx context.Context, cmd ScheduleReminderCommand) (ScheduleResult, error) {
	if !cmd.Channel.IsValid() {
		return ScheduleResult{}, fmt.Errorf("%w: unknown channel %q", domain.ErrInvalidReminder, cmd.Channel)
	}
	hasPreset := cmd.Preset != ""
	if hasPreset == !cmd.RemindAt.IsZero() {
		return ScheduleResult{}, fmt.Errorf("%w: exactly one of remindAt and preset is required", domain.ErrInvalidReminder)
	}

	key, start, err := h.lookup.LookupOccurrence(ctx, cmd.EventID, cmd.OccurrenceStart)
	if err != nil {
		return ScheduleResult{}, err
	}

	remindAt := cmd.RemindAt
	if hasPreset {
		if remindAt, err = cmd.Preset.RemindAt(start); err != nil {
			return ScheduleResult{}, err
		}
	}

	reminder, err := domain.NewReminder(cmd.EventID, key, remindAt, cmd.Channel, h.clock.Now())
	if err != nil {
		return ScheduleResult{}, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		dedup := reminder.DedupKey()
		existing, err := h.repo.FindActiveByDedupKey(txCtx, dedup)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.DuplicateReminderError{Key: dedup}
		}
		return h.repo.Insert(txCtx, reminder)
	})
	if err != nil {
		return ScheduleResult{}, err
	}

	return ScheduleResult{Reminder: reminder, Late: reminder.RemindAt.After(start)}, nil
}

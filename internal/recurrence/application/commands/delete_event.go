package commands

import (
	"context"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/google/uuid"
)

// DeleteEventCommand removes an event and everything derived from it.
type DeleteEventCommand struct {
	EventID uuid.UUID
}

// DeleteEventHandler handles the DeleteEventCommand.
type DeleteEventHandler struct {
	eventRepo    domain.EventRepository
	ruleRepo     domain.RuleRepository
	overrideRepo domain.OverrideRepository
	reminders    OccurrenceReminders
	uow          sharedApplication.UnitOfWork
}

// NewDeleteEventHandler creates a new DeleteEventHandler.
func NewDeleteEventHandler(eventRepo domain.EventRepository, ruleRepo domain.RuleRepository, overrideRepo domain.OverrideRepository, reminders OccurrenceReminders, uow sharedApplication.UnitOfWork) *DeleteEventHandler {
	return &DeleteEventHandler{eventRepo: eventRepo, ruleRepo: ruleRepo, overrideRepo: overrideRepo, reminders: reminders, uow: uow}
}

// Handle deletes reminders, overrides, rule and event in one unit of work.
func (h *DeleteEventHandler) Handle(ctx context.Context, cmd DeleteEventCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if _, err := h.eventRepo.FindByID(txCtx, cmd.EventID); err != nil {
			return err
		}
		if h.reminders != nil {
			if err := h.reminders.DeleteByEvent(txCtx, cmd.EventID); err != nil {
				return err
			}
		}
		if err := h.overrideRepo.DeleteByEventID(txCtx, cmd.EventID); err != nil {
			return err
		}
		if err := h.ruleRepo.Delete(txCtx, cmd.EventID); err != nil {
			return err
		}
		return h.eventRepo.Delete(txCtx, cmd.EventID)
	})
}

package commands

import (
	"context"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

// ClearRecurrenceRuleCommand turns a recurring event back into a single one.
type ClearRecurrenceRuleCommand struct {
	EventID uuid.UUID
}

// ClearRecurrenceRuleHandler handles the ClearRecurrenceRuleCommand.
type ClearRecurrenceRuleHandler struct {
	eventRepo    domain.EventRepository
	ruleRepo     domain.RuleRepository
	overrideRepo domain.OverrideRepository
	reminders    OccurrenceReminders
	expander     domain.Expander
	uow          sharedApplication.UnitOfWork
	clock        sharedDomain.Clock
}

// NewClearRecurrenceRuleHandler creates a new ClearRecurrenceRuleHandler.
func NewClearRecurrenceRuleHandler(
	eventRepo domain.EventRepository,
	ruleRepo domain.RuleRepository,
	overrideRepo domain.OverrideRepository,
	reminders OccurrenceReminders,
	expander domain.Expander,
	uow sharedApplication.UnitOfWork,
	clock sharedDomain.Clock,
) *ClearRecurrenceRuleHandler {
	return &ClearRecurrenceRuleHandler{
		eventRepo:    eventRepo,
		ruleRepo:     ruleRepo,
		overrideRepo: overrideRepo,
		reminders:    reminders,
		expander:     expander,
		uow:          uow,
		clock:        clock,
	}
}

// Handle removes the rule and every override, and cancels PENDING reminders
// for occurrences other than the anchor.
func (h *ClearRecurrenceRuleHandler) Handle(ctx context.Context, cmd ClearRecurrenceRuleCommand) error {
	now := h.clock.Now()
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		event, err := h.eventRepo.FindByID(txCtx, cmd.EventID)
		if err != nil {
			return err
		}
		if err := h.ruleRepo.Delete(txCtx, event.ID()); err != nil {
			return err
		}
		if event.IsRecurring() {
			event.ClearRecurring(now)
			if err := h.eventRepo.Save(txCtx, event); err != nil {
				return err
			}
		}
		return reconcile(txCtx, &domain.Series{Event: event}, h.expander, h.overrideRepo, h.reminders, now)
	})
}

package commands

import (
	"context"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

// SetRecurrenceRuleCommand attaches or replaces the rule of an event.
type SetRecurrenceRuleCommand struct {
	EventID uuid.UUID
	Rule    RuleInput
}

// SetRecurrenceRuleHandler handles the SetRecurrenceRuleCommand.
type SetRecurrenceRuleHandler struct {
	eventRepo    domain.EventRepository
	ruleRepo     domain.RuleRepository
	overrideRepo domain.OverrideRepository
	reminders    OccurrenceReminders
	expander     domain.Expander
	uow          sharedApplication.UnitOfWork
	clock        sharedDomain.Clock
}

// NewSetRecurrenceRuleHandler creates a new SetRecurrenceRuleHandler.
func NewSetRecurrenceRuleHandler(
	eventRepo domain.EventRepository,
	ruleRepo domain.RuleRepository,
	overrideRepo domain.OverrideRepository,
	reminders OccurrenceReminders,
	expander domain.Expander,
	uow sharedApplication.UnitOfWork,
	clock sharedDomain.Clock,
) *SetRecurrenceRuleHandler {
	return &SetRecurrenceRuleHandler{
		eventRepo:    eventRepo,
		ruleRepo:     ruleRepo,
		overrideRepo: overrideRepo,
		reminders:    reminders,
		expander:     expander,
		uow:          uow,
		clock:        clock,
	}
}

// Handle validates the rule, stores it and reconciles overrides and
// reminders with the new occurrence set. Applying the same rule twice is a
// no-op the second time.
func (h *SetRecurrenceRuleHandler) Handle(ctx context.Context, cmd SetRecurrenceRuleCommand) (domain.Rule, error) {
	rule, err := cmd.Rule.ToRule()
	if err != nil {
		return domain.Rule{}, err
	}
	now := h.clock.Now()

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		event, err := h.eventRepo.FindByID(txCtx, cmd.EventID)
		if err != nil {
			return err
		}
		if err := rule.Validate(event.Anchor()); err != nil {
			return err
		}

		if err := h.ruleRepo.Save(txCtx, event.ID(), rule, now); err != nil {
			return err
		}
		if !event.IsRecurring() {
			event.MarkRecurring(now)
			if err := h.eventRepo.Save(txCtx, event); err != nil {
				return err
			}
		}

		series := &domain.Series{Event: event, Rule: &rule}
		return reconcile(txCtx, series, h.expander, h.overrideRepo, h.reminders, now)
	})
	if err != nil {
		return domain.Rule{}, err
	}
	return rule, nil
}

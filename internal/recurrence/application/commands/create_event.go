package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
)

// CreateEventCommand contains the data needed to create an anchor event.
type CreateEventCommand struct {
	Title    string
	Start    time.Time
	End      time.Time
	Timezone string
	// Rule optionally makes the event recurring right away.
	Rule *RuleInput
}

// CreateEventHandler handles the CreateEventCommand.
type CreateEventHandler struct {
	eventRepo domain.EventRepository
	ruleRepo  domain.RuleRepository
	uow       sharedApplication.UnitOfWork
	clock     sharedDomain.Clock
}

// NewCreateEventHandler creates a new CreateEventHandler.
func NewCreateEventHandler(eventRepo domain.EventRepository, ruleRepo domain.RuleRepository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *CreateEventHandler {
	return &CreateEventHandler{eventRepo: eventRepo, ruleRepo: ruleRepo, uow: uow, clock: clock}
}

// Handle executes the CreateEventCommand.
func (h *CreateEventHandler) Handle(ctx context.Context, cmd CreateEventCommand) (*domain.Event, error) {
	now := h.clock.Now()
	anchor, err := domain.NewAnchor(cmd.Start, cmd.End, cmd.Timezone)
	if err != nil {
		return nil, err
	}
	event, err := domain.NewEvent(cmd.Title, anchor, now)
	if err != nil {
		return nil, err
	}

	var rule domain.Rule
	if cmd.Rule != nil {
		if rule, err = cmd.Rule.ToRule(); err != nil {
			return nil, err
		}
		if err := rule.Validate(anchor); err != nil {
			return nil, err
		}
		event.MarkRecurring(now)
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.eventRepo.Save(txCtx, event); err != nil {
			return err
		}
		if cmd.Rule == nil {
			return nil
		}
		return h.ruleRepo.Save(txCtx, event.ID(), rule, now)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

package commands

import (
	"context"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

// CancelReminderCommand contains the data needed to cancel a reminder.
type CancelReminderCommand struct {
	ReminderID uuid.UUID
}

// CancelReminderHandler handles reminder cancellation.
type CancelReminderHandler struct {
	repo  domain.Repository
	clock sharedDomain.Clock
}

// NewCancelReminderHandler creates a new CancelReminderHandler.
func NewCancelReminderHandler(repo domain.Repository, clock sharedDomain.Clock) *CancelReminderHandler {
	return &CancelReminderHandler{repo: repo, clock: clock}
}

// Handle cancels a PENDING or PROCESSING reminder. A delivery already in
// flight completes, but its terminal write loses to the cancellation.
// Reminders in any other status yield *domain.InvalidStateError, so callers
// can retry blindly.
func (h *CancelReminderHandler) Handle(ctx context.Context, cmd CancelReminderCommand) error {
	cancelled, err := h.repo.Cancel(ctx, cmd.ReminderID, h.clock.Now())
	if err != nil {
		return err
	}
	if cancelled {
		return nil
	}

	reminder, err := h.repo.FindByID(ctx, cmd.ReminderID)
	if err != nil {
		return err
	}
	return &domain.InvalidStateError{ReminderID: reminder.ID, Status: reminder.Status, Action: "cancel"}
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

// RescheduleOccurrenceCommand moves one occurrence of a series.
type RescheduleOccurrenceCommand struct {
	EventID       uuid.UUID
	OriginalStart time.Time
	NewStart      time.Time
	NewEnd        time.Time
}

// CancelOccurrenceCommand removes one occurrence of a series.
type CancelOccurrenceCommand struct {
	EventID       uuid.UUID
	OriginalStart time.Time
}

// RestoreOccurrenceCommand drops the override of one occurrence.
type RestoreOccurrenceCommand struct {
	EventID       uuid.UUID
	OriginalStart time.Time
}

// OccurrenceHandler handles the per-occurrence override commands.
type OccurrenceHandler struct {
	loader    domain.SeriesLoader
	reminders OccurrenceReminders
	expander  domain.Expander
	uow       sharedApplication.UnitOfWork
	clock     sharedDomain.Clock
}

// NewOccurrenceHandler creates a new OccurrenceHandler.
func NewOccurrenceHandler(loader domain.SeriesLoader, reminders OccurrenceReminders, expander domain.Expander, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock) *OccurrenceHandler {
	return &OccurrenceHandler{loader: loader, reminders: reminders, expander: expander, uow: uow, clock: clock}
}

// Reschedule stores a reschedule override keyed by the original start.
func (h *OccurrenceHandler) Reschedule(ctx context.Context, cmd RescheduleOccurrenceCommand) (domain.Override, error) {
	now := h.clock.Now()
	override, err := domain.NewReschedule(cmd.EventID, cmd.OriginalStart, cmd.NewStart, cmd.NewEnd, now)
	if err != nil {
		return domain.Override{}, err
	}
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if _, err := h.generated(txCtx, cmd.EventID, cmd.OriginalStart); err != nil {
			return err
		}
		return h.loader.Overrides.Save(txCtx, override)
	})
	if err != nil {
		return domain.Override{}, err
	}
	return override, nil
}

// Cancel stores a cancellation override and cancels the occurrence's
// PENDING reminders.
func (h *OccurrenceHandler) Cancel(ctx context.Context, cmd CancelOccurrenceCommand) error {
	now := h.clock.Now()
	override := domain.NewCancellation(cmd.EventID, cmd.OriginalStart, now)
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if _, err := h.generated(txCtx, cmd.EventID, cmd.OriginalStart); err != nil {
			return err
		}
		if err := h.loader.Overrides.Save(txCtx, override); err != nil {
			return err
		}
		if h.reminders == nil {
			return nil
		}
		_, err := h.reminders.CancelPendingForOccurrence(txCtx, cmd.EventID, override.OriginalStart, now)
		return err
	})
}

// Restore removes any override of the occurrence. Reminders cancelled along
// with the occurrence stay cancelled.
func (h *OccurrenceHandler) Restore(ctx context.Context, cmd RestoreOccurrenceCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if _, err := h.generated(txCtx, cmd.EventID, cmd.OriginalStart); err != nil {
			return err
		}
		return h.loader.Overrides.Delete(txCtx, cmd.EventID, cmd.OriginalStart.Truncate(time.Millisecond))
	})
}

// generated loads the series and checks that its rule produces originalStart.
func (h *OccurrenceHandler) generated(ctx context.Context, eventID uuid.UUID, originalStart time.Time) (*domain.Series, error) {
	series, err := h.loader.Load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if series.Rule == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRecurring, eventID)
	}
	if !series.Generates(h.expander, originalStart) {
		return nil, fmt.Errorf("%w: %s at %s", domain.ErrOccurrenceNotFound, eventID, originalStart.UTC().Format(time.RFC3339))
	}
	return series, nil
}

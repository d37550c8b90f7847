package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
)

// reconcile drops derived state that the series no longer generates:
// overrides keyed to vanished occurrences are deleted and PENDING reminders
// targeting them are cancelled.
func reconcile(ctx context.Context, series *domain.Series, expander domain.Expander, overrideRepo domain.OverrideRepository, reminders OccurrenceReminders, now time.Time) error {
	eventID := series.Event.ID()

	overrides, err := overrideRepo.FindByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	for _, ov := range overrides {
		if series.Rule != nil && series.Generates(expander, ov.OriginalStart) {
			continue
		}
		if err := overrideRepo.Delete(ctx, eventID, ov.OriginalStart); err != nil {
			return err
		}
	}

	if reminders == nil {
		return nil
	}
	starts, err := reminders.PendingOccurrenceStarts(ctx, eventID)
	if err != nil {
		return err
	}
	for _, start := range starts {
		if series.Generates(expander, start) {
			continue
		}
		if _, err := reminders.CancelPendingForOccurrence(ctx, eventID, start, now); err != nil {
			return err
		}
	}
	return nil
}

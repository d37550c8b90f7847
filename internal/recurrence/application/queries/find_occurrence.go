package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// FindOccurrenceHandler resolves the single occurrence a reminder targets.
type FindOccurrenceHandler struct {
	loader   domain.SeriesLoader
	resolver domain.Resolver
}

// NewFindOccurrenceHandler creates a new FindOccurrenceHandler.
func NewFindOccurrenceHandler(loader domain.SeriesLoader, resolver domain.Resolver) *FindOccurrenceHandler {
	return &FindOccurrenceHandler{loader: loader, resolver: resolver}
}

// LookupOccurrence returns the occurrence key to store on a reminder and the
// occurrence's resolved start.
//
// Recurring events require originalStart and it must name a live
// occurrence. Non-recurring events accept none or the anchor start and
// yield an empty key.
func (h *FindOccurrenceHandler) LookupOccurrence(ctx context.Context, eventID uuid.UUID, originalStart mo.Option[time.Time]) (mo.Option[time.Time], time.Time, error) {
	series, err := h.loader.Load(ctx, eventID)
	if err != nil {
		return mo.None[time.Time](), time.Time{}, err
	}
	anchor := series.Event.Anchor()

	if series.Rule == nil {
		if at, ok := originalStart.Get(); ok && !at.Equal(anchor.Start) {
			return mo.None[time.Time](), time.Time{}, fmt.Errorf("%w: %s is not the start of event %s", domain.ErrOccurrenceNotFound, at.UTC().Format(time.RFC3339), eventID)
		}
		return mo.None[time.Time](), anchor.Start, nil
	}

	at, ok := originalStart.Get()
	if !ok {
		return mo.None[time.Time](), time.Time{}, &domain.ValidationError{Field: "occurrenceStart", Message: "is required for a recurring event"}
	}
	occ, ok := series.Find(h.resolver, at)
	if !ok {
		return mo.None[time.Time](), time.Time{}, fmt.Errorf("%w: %s at %s", domain.ErrOccurrenceNotFound, eventID, at.UTC().Format(time.RFC3339))
	}
	return mo.Some(occ.OriginalStart), occ.Start, nil
}

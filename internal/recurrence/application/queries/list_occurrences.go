package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/google/uuid"
)

// OccurrenceDTO is a resolved occurrence.
type OccurrenceDTO struct {
	EventID       uuid.UUID `json:"eventId"`
	Title         string    `json:"title"`
	OriginalStart time.Time `json:"originalStart"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Rescheduled   bool      `json:"rescheduled"`
}

// ListOccurrencesQuery asks for the occurrences of an event in a window.
type ListOccurrencesQuery struct {
	EventID uuid.UUID
	From    time.Time
	To      time.Time
}

// ListOccurrencesHandler handles the ListOccurrencesQuery.
type ListOccurrencesHandler struct {
	loader   domain.SeriesLoader
	resolver domain.Resolver
}

// NewListOccurrencesHandler creates a new ListOccurrencesHandler.
func NewListOccurrencesHandler(loader domain.SeriesLoader, resolver domain.Resolver) *ListOccurrencesHandler {
	return &ListOccurrencesHandler{loader: loader, resolver: resolver}
}

// Handle executes the ListOccurrencesQuery. A recurring event without a
// valid rule fails with domain.ErrCorruptRecurrenceState.
func (h *ListOccurrencesHandler) Handle(ctx context.Context, query ListOccurrencesQuery) ([]OccurrenceDTO, error) {
	series, resolved, err := h.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	dtos := make([]OccurrenceDTO, len(resolved))
	for i, occ := range resolved {
		dtos[i] = OccurrenceDTO{
			EventID:       series.Event.ID(),
			Title:         series.Event.Title(),
			OriginalStart: occ.OriginalStart,
			Start:         occ.Start,
			End:           occ.End,
			Rescheduled:   occ.Rescheduled,
		}
	}
	return dtos, nil
}

// Resolve returns the loaded series with its resolved occurrences, for
// callers that render more than the DTO carries.
func (h *ListOccurrencesHandler) Resolve(ctx context.Context, query ListOccurrencesQuery) (*domain.Series, []domain.ResolvedOccurrence, error) {
	window := domain.Window{Start: query.From, End: query.To}
	if err := window.Validate(); err != nil {
		return nil, nil, err
	}
	series, err := h.loader.Load(ctx, query.EventID)
	if err != nil {
		return nil, nil, err
	}
	return series, series.Resolve(h.resolver, window), nil
}

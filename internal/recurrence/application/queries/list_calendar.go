package queries

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/google/uuid"
)

// ListCalendarQuery asks for the occurrences of every event in a window.
type ListCalendarQuery struct {
	From time.Time
	To   time.Time
}

// CalendarDTO is the calendar-wide view of a window.
type CalendarDTO struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
	// Corrupt lists recurring events left out because their stored rule is unusable.
	Corrupt []uuid.UUID `json:"corrupt,omitempty"`
}

// CalendarEntry is one series with its resolved occurrences in the window.
type CalendarEntry struct {
	Series      *domain.Series
	Occurrences []domain.ResolvedOccurrence
}

// ListCalendarHandler resolves all events in a window.
type ListCalendarHandler struct {
	loader   domain.SeriesLoader
	resolver domain.Resolver
}

// NewListCalendarHandler creates a new ListCalendarHandler.
func NewListCalendarHandler(loader domain.SeriesLoader, resolver domain.Resolver) *ListCalendarHandler {
	return &ListCalendarHandler{loader: loader, resolver: resolver}
}

// Handle returns every visible occurrence in the window ordered by resolved
// start, then event id.
func (h *ListCalendarHandler) Handle(ctx context.Context, query ListCalendarQuery) (*CalendarDTO, error) {
	entries, corrupt, err := h.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	dto := &CalendarDTO{
		From:        query.From,
		To:          query.To,
		Occurrences: make([]OccurrenceDTO, 0),
		Corrupt:     corrupt,
	}
	for _, entry := range entries {
		event := entry.Series.Event
		for _, occ := range entry.Occurrences {
			dto.Occurrences = append(dto.Occurrences, OccurrenceDTO{
				EventID:       event.ID(),
				Title:         event.Title(),
				OriginalStart: occ.OriginalStart,
				Start:         occ.Start,
				End:           occ.End,
				Rescheduled:   occ.Rescheduled,
			})
		}
	}
	slices.SortStableFunc(dto.Occurrences, func(a, b OccurrenceDTO) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := strings.Compare(a.EventID.String(), b.EventID.String()); c != 0 {
			return c
		}
		return a.OriginalStart.Compare(b.OriginalStart)
	})
	return dto, nil
}

// Resolve returns the series with at least one occurrence in the window,
// plus the ids of corrupt series that were skipped.
func (h *ListCalendarHandler) Resolve(ctx context.Context, query ListCalendarQuery) ([]CalendarEntry, []uuid.UUID, error) {
	window := domain.Window{Start: query.From, End: query.To}
	if err := window.Validate(); err != nil {
		return nil, nil, err
	}
	series, corrupt, err := h.loader.LoadWindow(ctx, window)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]CalendarEntry, 0, len(series))
	for _, s := range series {
		resolved := s.Resolve(h.resolver, window)
		if len(resolved) == 0 {
			continue
		}
		entries = append(entries, CalendarEntry{Series: s, Occurrences: resolved})
	}
	slices.SortFunc(corrupt, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	return entries, corrupt, nil
}

package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/google/uuid"
)

// SeriesDTO describes an event and its rule.
type SeriesDTO struct {
	EventID   uuid.UUID    `json:"eventId"`
	Title     string       `json:"title"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	Timezone  string       `json:"timezone"`
	Recurring bool         `json:"recurring"`
	Rule      *domain.Rule `json:"-"`
	Overrides int          `json:"overrides"`
}

// GetSeriesHandler loads an event with its rule.
type GetSeriesHandler struct {
	loader domain.SeriesLoader
}

// NewGetSeriesHandler creates a new GetSeriesHandler.
func NewGetSeriesHandler(loader domain.SeriesLoader) *GetSeriesHandler {
	return &GetSeriesHandler{loader: loader}
}

// Handle returns the series of eventID.
func (h *GetSeriesHandler) Handle(ctx context.Context, eventID uuid.UUID) (*SeriesDTO, error) {
	series, err := h.loader.Load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	anchor := series.Event.Anchor()
	return &SeriesDTO{
		EventID:   series.Event.ID(),
		Title:     series.Event.Title(),
		Start:     anchor.Start,
		End:       anchor.End,
		Timezone:  anchor.Timezone,
		Recurring: series.Event.IsRecurring(),
		Rule:      series.Rule,
		Overrides: len(series.Overrides),
	}, nil
}

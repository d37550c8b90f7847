package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Series is an event together with its rule and overrides.
type Series struct {
	Event     *Event
	Rule      *Rule
	Overrides []Override
}

// Resolve returns the visible occurrences of the series within window.
func (s *Series) Resolve(resolver Resolver, window Window) []ResolvedOccurrence {
	return resolver.Resolve(s.Rule, s.Event.Anchor(), s.Overrides, window)
}

// Find resolves the occurrence keyed by originalStart.
func (s *Series) Find(resolver Resolver, originalStart time.Time) (ResolvedOccurrence, bool) {
	return resolver.Find(s.Rule, s.Event.Anchor(), s.Overrides, originalStart)
}

// Generates reports whether the rule produces an occurrence at originalStart.
// A non-recurring series only generates its anchor.
func (s *Series) Generates(expander Expander, originalStart time.Time) bool {
	anchor := s.Event.Anchor()
	if s.Rule == nil {
		return originalStart.Equal(anchor.Start)
	}
	return expander.Contains(*s.Rule, anchor, originalStart)
}

// SeriesLoader reads a series from its repositories.
type SeriesLoader struct {
	Events    EventRepository
	Rules     RuleRepository
	Overrides OverrideRepository
}

// Load fetches the event and, when it is recurring, its rule and overrides.
// A recurring event without a valid rule yields ErrCorruptRecurrenceState.
func (l SeriesLoader) Load(ctx context.Context, eventID uuid.UUID) (*Series, error) {
	event, err := l.Events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return l.complete(ctx, event)
}

// LoadWindow loads every series that may have an occurrence in window.
// Recurring series whose stored rule is unusable are reported in corrupt
// rather than failing the whole read.
func (l SeriesLoader) LoadWindow(ctx context.Context, window Window) (series []*Series, corrupt []uuid.UUID, err error) {
	events, err := l.Events.ListInWindow(ctx, window)
	if err != nil {
		return nil, nil, err
	}
	series = make([]*Series, 0, len(events))
	for _, event := range events {
		s, err := l.complete(ctx, event)
		if errors.Is(err, ErrCorruptRecurrenceState) {
			corrupt = append(corrupt, event.ID())
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		series = append(series, s)
	}
	return series, corrupt, nil
}

func (l SeriesLoader) complete(ctx context.Context, event *Event) (*Series, error) {
	series := &Series{Event: event}
	if !event.IsRecurring() {
		return series, nil
	}
	eventID := event.ID()

	rule, err := l.Rules.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: event %s has no recurrence rule", ErrCorruptRecurrenceState, eventID)
	}
	if err := rule.Validate(event.Anchor()); err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", ErrCorruptRecurrenceState, eventID, err)
	}
	series.Rule = rule

	overrides, err := l.Overrides.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	series.Overrides = overrides
	return series, nil
}

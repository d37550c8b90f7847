package domain

import (
	"time"
)

// Anchor is the first instance of a series. Every occurrence keeps its
// duration and wall-clock time of day in Timezone.
type Anchor struct {
	Start    time.Time
	End      time.Time
	Timezone string
}

// NewAnchor builds a validated anchor. Instants are truncated to the
// millisecond, the precision they are stored and keyed at.
func NewAnchor(start, end time.Time, timezone string) (Anchor, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	a := Anchor{
		Start:    start.Truncate(time.Millisecond).UTC(),
		End:      end.Truncate(time.Millisecond).UTC(),
		Timezone: timezone,
	}
	if err := a.Validate(); err != nil {
		return Anchor{}, err
	}
	return a, nil
}

// Validate checks the time range and timezone.
func (a Anchor) Validate() error {
	if a.Start.IsZero() {
		return invalid("startAt", "is required")
	}
	if a.End.Before(a.Start) {
		return invalid("endAt", "must not be before startAt")
	}
	if _, err := time.LoadLocation(a.tz()); err != nil {
		return invalid("timezone", "unknown timezone %q", a.Timezone)
	}
	return nil
}

// Duration is preserved across all occurrences.
func (a Anchor) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Location resolves Timezone, falling back to UTC when it cannot be loaded.
func (a Anchor) Location() *time.Location {
	loc, err := time.LoadLocation(a.tz())
	if err != nil {
		return time.UTC
	}
	return loc
}

func (a Anchor) tz() string {
	if a.Timezone == "" {
		return "UTC"
	}
	return a.Timezone
}

// Window is a closed query range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return invalid("window", "start and end are required")
	}
	if w.End.Before(w.Start) {
		return invalid("window", "end must not be before start")
	}
	return nil
}

// Intersects reports whether [start, end] overlaps the window. Zero-length
// occurrences count when they fall inside it.
func (w Window) Intersects(start, end time.Time) bool {
	if start.After(w.End) {
		return false
	}
	return end.After(w.Start) || !start.Before(w.Start)
}

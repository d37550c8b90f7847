package domain

import (
	"cmp"
	"slices"
	"time"
)

// ResolvedOccurrence is an occurrence after overrides have been applied.
type ResolvedOccurrence struct {
	// OriginalStart is the start the rule generated. It identifies the
	// occurrence for overrides and reminders.
	OriginalStart time.Time
	Start         time.Time
	End           time.Time
	Rescheduled   bool
}

// Resolver merges expansion output with per-occurrence overrides.
type Resolver struct {
	Expander Expander
}

// NewResolver creates a resolver backed by expander.
func NewResolver(expander Expander) Resolver {
	return Resolver{Expander: expander}
}

// Resolve returns the visible occurrences of a series within window, sorted
// by resolved start. A nil rule yields the anchor alone when it intersects.
//
// Cancelled occurrences are dropped. Rescheduled occurrences are reported at
// their new time, including those whose original start lies outside the
// window but whose new time falls inside it. Overrides never affect any
// occurrence other than the one they are keyed to.
func (r Resolver) Resolve(rule *Rule, anchor Anchor, overrides []Override, window Window) []ResolvedOccurrence {
	if window.End.Before(window.Start) {
		return nil
	}
	if rule == nil {
		if !window.Intersects(anchor.Start, anchor.End) {
			return nil
		}
		return []ResolvedOccurrence{{
			OriginalStart: anchor.Start.UTC(),
			Start:         anchor.Start.UTC(),
			End:           anchor.End.UTC(),
		}}
	}

	byKey := make(map[int64]Override, len(overrides))
	for _, ov := range overrides {
		byKey[OccurrenceKey(ov.OriginalStart)] = ov
	}

	var out []ResolvedOccurrence
	seen := make(map[int64]struct{})
	for occ := range r.Expander.Occurrences(*rule, anchor, window) {
		key := OccurrenceKey(occ.Start)
		seen[key] = struct{}{}
		ov, ok := byKey[key]
		if !ok {
			out = append(out, ResolvedOccurrence{OriginalStart: occ.Start, Start: occ.Start, End: occ.End})
			continue
		}
		if resolved, visible := apply(occ.Start, ov); visible && window.Intersects(resolved.Start, resolved.End) {
			out = append(out, resolved)
		}
	}

	// Occurrences moved into the window from outside it.
	for key, ov := range byKey {
		if _, done := seen[key]; done || ov.Cancelled {
			continue
		}
		if !window.Intersects(ov.Start, ov.End) {
			continue
		}
		if !r.Expander.Contains(*rule, anchor, ov.OriginalStart) {
			continue
		}
		resolved, _ := apply(ov.OriginalStart, ov)
		out = append(out, resolved)
	}

	slices.SortFunc(out, func(a, b ResolvedOccurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.OriginalStart.UnixMilli(), b.OriginalStart.UnixMilli())
	})
	return out
}

// Find resolves the single occurrence keyed by originalStart. ok is false
// when the rule does not generate it or it has been cancelled.
func (r Resolver) Find(rule *Rule, anchor Anchor, overrides []Override, originalStart time.Time) (ResolvedOccurrence, bool) {
	if rule == nil {
		if !originalStart.Equal(anchor.Start) {
			return ResolvedOccurrence{}, false
		}
		return ResolvedOccurrence{OriginalStart: anchor.Start.UTC(), Start: anchor.Start.UTC(), End: anchor.End.UTC()}, true
	}
	if !r.Expander.Contains(*rule, anchor, originalStart) {
		return ResolvedOccurrence{}, false
	}
	original := originalStart.UTC()
	for _, ov := range overrides {
		if OccurrenceKey(ov.OriginalStart) == OccurrenceKey(original) {
			return apply(original, ov)
		}
	}
	return ResolvedOccurrence{OriginalStart: original, Start: original, End: original.Add(anchor.Duration())}, true
}

func apply(originalStart time.Time, ov Override) (ResolvedOccurrence, bool) {
	if ov.Cancelled {
		return ResolvedOccurrence{}, false
	}
	return ResolvedOccurrence{
		OriginalStart: originalStart.UTC(),
		Start:         ov.Start.UTC(),
		End:           ov.End.UTC(),
		Rescheduled:   true,
	}, true
}

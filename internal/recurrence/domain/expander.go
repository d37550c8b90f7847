package domain

import (
	"iter"
	"time"
)

// DefaultMaxCandidates bounds how many candidate starts one expansion may
// generate before it stops.
const DefaultMaxCandidates = 10000

// Occurrence is one concrete instance of a series.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Expander turns a rule and its anchor into concrete occurrences. It holds
// no state and is safe for concurrent use.
type Expander struct {
	// MaxCandidates caps candidate generation per call. Zero means
	// DefaultMaxCandidates.
	MaxCandidates int
}

// NewExpander creates an expander with the given candidate cap.
func NewExpander(maxCandidates int) Expander {
	return Expander{MaxCandidates: maxCandidates}
}

func (e Expander) maxCandidates() int {
	if e.MaxCandidates <= 0 {
		return DefaultMaxCandidates
	}
	return e.MaxCandidates
}

// Expand returns the occurrences of rule that intersect window, in
// ascending start order.
func (e Expander) Expand(rule Rule, anchor Anchor, window Window) []Occurrence {
	var out []Occurrence
	for occ := range e.Occurrences(rule, anchor, window) {
		out = append(out, occ)
	}
	return out
}

// Contains reports whether t is the start of an occurrence generated by
// rule, ignoring overrides.
func (e Expander) Contains(rule Rule, anchor Anchor, t time.Time) bool {
	for occ := range e.Occurrences(rule, anchor, Window{Start: t, End: t}) {
		if occ.Start.Equal(t) {
			return true
		}
	}
	return false
}

// Occurrences lazily yields the occurrences of rule intersecting window.
//
// Candidates are computed on the wall clock of the anchor's timezone, so a
// 09:00 series stays at 09:00 across DST changes. COUNT rules always walk
// from the anchor because the count is independent of the window; other
// rules skip straight to the steps that can reach the window.
func (e Expander) Occurrences(rule Rule, anchor Anchor, window Window) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		if window.End.Before(window.Start) {
			return
		}
		loc := anchor.Location()
		start := anchor.Start.In(loc)
		duration := anchor.Duration()
		limit := e.maxCandidates()

		var (
			until    time.Time
			hasUntil bool
			count    int
			hasCount bool
		)
		switch end := rule.Termination().(type) {
		case EndUntil:
			until, hasUntil = end.At, true
		case EndCount:
			count, hasCount = end.N, true
		}

		step := 0
		if !hasCount {
			step = firstStep(rule, start, window.Start.Add(-duration).In(loc))
		}

		generated, emitted := 0, 0
		for ; ; step++ {
			for _, candidate := range candidates(rule, start, step) {
				generated++
				if generated > limit {
					return
				}
				if candidate.Before(start) {
					continue
				}
				if hasUntil && candidate.After(until) {
					return
				}
				if hasCount && emitted >= count {
					return
				}
				if candidate.After(window.End) {
					return
				}
				emitted++

				occ := Occurrence{Start: candidate.UTC(), End: candidate.Add(duration).UTC()}
				if window.Intersects(occ.Start, occ.End) && !yield(occ) {
					return
				}
			}
		}
	}
}

// candidates returns the candidate starts of one step in ascending order.
func candidates(rule Rule, start time.Time, step int) []time.Time {
	y, m, d := start.Date()
	hh, mm, ss := start.Clock()
	ns := start.Nanosecond()
	loc := start.Location()
	k := step * rule.Interval

	switch rule.Frequency {
	case FrequencyDaily:
		return []time.Time{time.Date(y, m, d+k, hh, mm, ss, ns, loc)}

	case FrequencyWeekly:
		sunday := d - int(start.Weekday()) + 7*k
		days := rule.weekdays(start.Weekday())
		out := make([]time.Time, len(days))
		for i, wd := range days {
			out[i] = time.Date(y, m, sunday+int(wd), hh, mm, ss, ns, loc)
		}
		return out

	case FrequencyMonthly:
		months := int(m) - 1 + k
		ty, tm := y+months/12, time.Month(months%12+1)
		return []time.Time{time.Date(ty, tm, clampDay(ty, tm, targetDay(rule, d)), hh, mm, ss, ns, loc)}

	case FrequencyYearly:
		ty := y + k
		return []time.Time{time.Date(ty, m, clampDay(ty, m, targetDay(rule, d)), hh, mm, ss, ns, loc)}
	}
	return nil
}

func targetDay(rule Rule, anchorDay int) int {
	if rule.ByMonthDay > 0 {
		return rule.ByMonthDay
	}
	return anchorDay
}

// clampDay moves a day past the end of the month onto its last day.
func clampDay(year int, month time.Month, day int) int {
	return min(day, daysIn(year, month))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// firstStep returns a step no later than the first one whose candidates can
// end at or after target. It errs one step early.
func firstStep(rule Rule, start, target time.Time) int {
	if !target.After(start) {
		return 0
	}
	var units int
	switch rule.Frequency {
	case FrequencyDaily:
		units = civilDays(start, target)
	case FrequencyWeekly:
		units = (civilDays(start, target) + int(start.Weekday())) / 7
	case FrequencyMonthly:
		units = (target.Year()-start.Year())*12 + int(target.Month()) - int(start.Month())
	case FrequencyYearly:
		units = target.Year() - start.Year()
	}
	return max(units/rule.Interval-1, 0)
}

// civilDays counts calendar days between the dates of a and b.
func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

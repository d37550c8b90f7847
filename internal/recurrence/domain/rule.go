package domain

import (
	"slices"
	"time"
)

// Limits carried over from the rule editor.
const (
	MaxInterval = 365
	MaxCount    = 1000
)

// Frequency is the unit a rule steps by.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Weekday is a two-letter iCalendar day code.
type Weekday string

const (
	Sunday    Weekday = "SU"
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
)

var weekdayCodes = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf converts a time.Weekday into its code.
func WeekdayOf(d time.Weekday) Weekday {
	return weekdayCodes[d]
}

// TimeWeekday converts the code back into a time.Weekday. ok is false for
// unknown codes.
func (w Weekday) TimeWeekday() (time.Weekday, bool) {
	i := slices.Index(weekdayCodes[:], w)
	if i < 0 {
		return 0, false
	}
	return time.Weekday(i), true
}

// EndKind discriminates the End variants.
type EndKind string

const (
	EndKindNever EndKind = "never"
	EndKindUntil EndKind = "until"
	EndKindCount EndKind = "count"
)

// End is the termination condition of a rule. Exactly one variant exists
// per rule; the unexported method keeps the set closed.
type End interface {
	Kind() EndKind
	isEnd()
}

// EndNever lets a rule repeat forever.
type EndNever struct{}

// EndUntil stops a rule after the last occurrence starting at or before At.
type EndUntil struct {
	At time.Time
}

// EndCount stops a rule after N occurrences.
type EndCount struct {
	N int
}

func (EndNever) Kind() EndKind { return EndKindNever }
func (EndUntil) Kind() EndKind { return EndKindUntil }
func (EndCount) Kind() EndKind { return EndKindCount }

func (EndNever) isEnd() {}
func (EndUntil) isEnd() {}
func (EndCount) isEnd() {}

// Rule describes how an anchor event repeats.
type Rule struct {
	Frequency Frequency
	Interval  int
	// ByWeekday applies to WEEKLY rules only. Empty means the anchor's weekday.
	ByWeekday []Weekday
	// ByMonthDay applies to MONTHLY and YEARLY rules only. Zero means the
	// anchor's day of month.
	ByMonthDay int
	// End defaults to EndNever when nil.
	End End
}

// Termination returns the rule's end condition, defaulting to EndNever.
func (r Rule) Termination() End {
	if r.End == nil {
		return EndNever{}
	}
	return r.End
}

// Validate checks the rule against the anchor it will be attached to.
// It has no side effects and returns a *ValidationError on the first problem.
func (r Rule) Validate(anchor Anchor) error {
	if !r.Frequency.IsValid() {
		return invalid("frequency", "unsupported frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return invalid("interval", "must be at least 1, got %d", r.Interval)
	}
	if r.Interval > MaxInterval {
		return invalid("interval", "must be at most %d, got %d", MaxInterval, r.Interval)
	}

	if len(r.ByWeekday) > 0 {
		if r.Frequency != FrequencyWeekly {
			return invalid("byWeekday", "only allowed with WEEKLY frequency")
		}
		for _, w := range r.ByWeekday {
			if _, ok := w.TimeWeekday(); !ok {
				return invalid("byWeekday", "unknown weekday %q", w)
			}
		}
	}

	if r.ByMonthDay != 0 {
		if r.ByMonthDay < 1 || r.ByMonthDay > 31 {
			return invalid("byMonthDay", "must be between 1 and 31, got %d", r.ByMonthDay)
		}
		if r.Frequency != FrequencyMonthly && r.Frequency != FrequencyYearly {
			return invalid("byMonthDay", "only allowed with MONTHLY or YEARLY frequency")
		}
	}

	switch end := r.Termination().(type) {
	case EndNever:
	case EndCount:
		if end.N < 1 {
			return invalid("end.count", "must be at least 1, got %d", end.N)
		}
		if end.N > MaxCount {
			return invalid("end.count", "must be at most %d, got %d", MaxCount, end.N)
		}
	case EndUntil:
		if end.At.IsZero() {
			return invalid("end.until", "is required")
		}
		if end.At.Before(anchor.Start) {
			return invalid("end.until", "must not be before the event start")
		}
	default:
		return invalid("end", "unsupported end condition")
	}

	return anchor.Validate()
}

// weekdays returns the sorted, de-duplicated weekday set of a WEEKLY rule,
// falling back to the anchor's own weekday.
func (r Rule) weekdays(anchorDay time.Weekday) []time.Weekday {
	if len(r.ByWeekday) == 0 {
		return []time.Weekday{anchorDay}
	}
	days := make([]time.Weekday, 0, len(r.ByWeekday))
	for _, w := range r.ByWeekday {
		if d, ok := w.TimeWeekday(); ok && !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return days
}

package ical

import (
	"github.com/teambition/rrule-go"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
)

var frequencies = map[domain.Frequency]rrule.Frequency{
	domain.FrequencyDaily:   rrule.DAILY,
	domain.FrequencyWeekly:  rrule.WEEKLY,
	domain.FrequencyMonthly: rrule.MONTHLY,
	domain.FrequencyYearly:  rrule.YEARLY,
}

var weekdays = map[domain.Weekday]rrule.Weekday{
	domain.Sunday:    rrule.SU,
	domain.Monday:    rrule.MO,
	domain.Tuesday:   rrule.TU,
	domain.Wednesday: rrule.WE,
	domain.Thursday:  rrule.TH,
	domain.Friday:    rrule.FR,
	domain.Saturday:  rrule.SA,
}

// FormatRRule renders rule as an RFC 5545 RRULE value for display. Weeks
// start on Sunday. RFC 5545 skips month days a month does not have where
// the expander clamps them, so this text describes but does not drive
// expansion.
func FormatRRule(rule domain.Rule) string {
	opt := rrule.ROption{
		Freq:     frequencies[rule.Frequency],
		Interval: rule.Interval,
		Wkst:     rrule.SU,
	}
	for _, w := range rule.ByWeekday {
		if wd, ok := weekdays[w]; ok {
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	}
	if rule.ByMonthDay != 0 {
		opt.Bymonthday = []int{rule.ByMonthDay}
	}
	switch end := rule.Termination().(type) {
	case domain.EndUntil:
		opt.Until = end.At.UTC()
	case domain.EndCount:
		opt.Count = end.N
	}
	return opt.RRuleString()
}

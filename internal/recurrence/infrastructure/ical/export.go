// Package ical renders series as iCalendar data.
package ical

import (
	"fmt"
	"io"
	"time"

	goical "github.com/emersion/go-ical"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
)

// ProductID identifies calendars produced by this package.
const ProductID = "-//cadence//recurrence export//EN"

// Entry is one event with the occurrences to export for it.
type Entry struct {
	Event       *domain.Event
	Occurrences []domain.ResolvedOccurrence
}

// Export writes the resolved occurrences of an event as a VCALENDAR. Every
// occurrence becomes its own VEVENT so clamped month days and overrides
// survive in clients that implement RRULE differently. RECURRENCE-ID holds
// the original start.
func Export(w io.Writer, event *domain.Event, occurrences []domain.ResolvedOccurrence, stamp time.Time) error {
	return ExportCalendar(w, []Entry{{Event: event, Occurrences: occurrences}}, stamp)
}

// ExportCalendar writes several events into one VCALENDAR. X-WR-TIMEZONE is
// set only when every event shares a timezone.
func ExportCalendar(w io.Writer, entries []Entry, stamp time.Time) error {
	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, ProductID)
	if tz, ok := sharedTimezone(entries); ok {
		cal.Props.SetText("X-WR-TIMEZONE", tz)
	}

	for _, entry := range entries {
		event := entry.Event
		for _, occ := range entry.Occurrences {
			vevent := goical.NewEvent()
			vevent.Props.SetText(goical.PropUID, occurrenceUID(event, occ))
			vevent.Props.SetDateTime(goical.PropDateTimeStamp, stamp.UTC())
			vevent.Props.SetText(goical.PropSummary, event.Title())
			vevent.Props.SetDateTime(goical.PropDateTimeStart, occ.Start.UTC())
			vevent.Props.SetDateTime(goical.PropDateTimeEnd, occ.End.UTC())
			if event.IsRecurring() {
				vevent.Props.SetDateTime(goical.PropRecurrenceID, occ.OriginalStart.UTC())
			}
			cal.Children = append(cal.Children, vevent.Component)
		}
	}

	if err := goical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func sharedTimezone(entries []Entry) (string, bool) {
	var tz string
	for i, entry := range entries {
		current := entry.Event.Anchor().Timezone
		if i > 0 && current != tz {
			return "", false
		}
		tz = current
	}
	return tz, tz != ""
}

func occurrenceUID(event *domain.Event, occ domain.ResolvedOccurrence) string {
	return fmt.Sprintf("%s-%d@cadence", event.ID(), occ.OriginalStart.UnixMilli())
}

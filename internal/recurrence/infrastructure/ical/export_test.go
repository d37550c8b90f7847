package ical

import (
	"bytes"
	"strings"
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
)

func TestExport(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	anchor, err := domain.NewAnchor(start, start.Add(time.Hour), "UTC")
	require.NoError(t, err)
	event, err := domain.NewEvent("Standup", anchor, start)
	require.NoError(t, err)
	event.MarkRecurring(start)

	rule := &domain.Rule{Frequency: domain.FrequencyDaily, Interval: 1, End: domain.EndCount{N: 3}}
	moved, err := domain.NewReschedule(event.ID(), start.AddDate(0, 0, 1), start.AddDate(0, 0, 1).Add(2*time.Hour), start.AddDate(0, 0, 1).Add(3*time.Hour), start)
	require.NoError(t, err)
	occs := domain.NewResolver(domain.Expander{}).Resolve(rule, anchor, []domain.Override{moved}, domain.Window{Start: start, End: start.AddDate(0, 0, 7)})
	require.Len(t, occs, 3)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, event, occs, start))

	cal, err := goical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 3)

	second := events[1]
	dtstart, err := second.Props.DateTime(goical.PropDateTimeStart, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 1).Add(2*time.Hour), dtstart)
	rid, err := second.Props.DateTime(goical.PropRecurrenceID, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 1), rid)
	summary, err := second.Props.Text(goical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Standup", summary)

	uid, err := events[0].Props.Text(goical.PropUID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uid, event.ID().String()))
}

func TestExportCalendar(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	newEvent := func(title, tz string) *domain.Event {
		anchor, err := domain.NewAnchor(start, start.Add(time.Hour), tz)
		require.NoError(t, err)
		event, err := domain.NewEvent(title, anchor, start)
		require.NoError(t, err)
		return event
	}
	single := func(e *domain.Event) []domain.ResolvedOccurrence {
		a := e.Anchor()
		return []domain.ResolvedOccurrence{{OriginalStart: a.Start, Start: a.Start, End: a.End}}
	}

	t.Run("one calendar for all events", func(t *testing.T) {
		standup := newEvent("Standup", "Europe/Berlin")
		dentist := newEvent("Dentist", "America/New_York")

		var buf bytes.Buffer
		require.NoError(t, ExportCalendar(&buf, []Entry{
			{Event: standup, Occurrences: single(standup)},
			{Event: dentist, Occurrences: single(dentist)},
		}, start))

		cal, err := goical.NewDecoder(&buf).Decode()
		require.NoError(t, err)
		events := cal.Events()
		require.Len(t, events, 2)
		summary, err := events[1].Props.Text(goical.PropSummary)
		require.NoError(t, err)
		assert.Equal(t, "Dentist", summary)
		assert.Nil(t, cal.Props.Get("X-WR-TIMEZONE"), "mixed timezones")
		assert.Nil(t, events[0].Props.Get(goical.PropRecurrenceID), "single events carry no RECURRENCE-ID")
	})

	t.Run("shared timezone", func(t *testing.T) {
		a, b := newEvent("A", "Europe/Berlin"), newEvent("B", "Europe/Berlin")

		var buf bytes.Buffer
		require.NoError(t, ExportCalendar(&buf, []Entry{{Event: a, Occurrences: single(a)}, {Event: b, Occurrences: single(b)}}, start))

		cal, err := goical.NewDecoder(&buf).Decode()
		require.NoError(t, err)
		tz, err := cal.Props.Text("X-WR-TIMEZONE")
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", tz)
	})
}

func TestFormatRRule(t *testing.T) {
	until := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rule domain.Rule
		want []string
	}{
		{
			name: "weekly",
			rule: domain.Rule{Frequency: domain.FrequencyWeekly, Interval: 2, ByWeekday: []domain.Weekday{domain.Monday, domain.Friday}},
			want: []string{"FREQ=WEEKLY", "INTERVAL=2", "BYDAY=MO,FR"},
		},
		{
			name: "monthly count",
			rule: domain.Rule{Frequency: domain.FrequencyMonthly, Interval: 1, ByMonthDay: 31, End: domain.EndCount{N: 6}},
			want: []string{"FREQ=MONTHLY", "COUNT=6", "BYMONTHDAY=31"},
		},
		{
			name: "daily until",
			rule: domain.Rule{Frequency: domain.FrequencyDaily, Interval: 1, End: domain.EndUntil{At: until}},
			want: []string{"FREQ=DAILY", "UNTIL=20240630T000000Z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatRRule(tt.rule)
			for _, part := range tt.want {
				assert.Contains(t, got, part)
			}
			_, err := rrule.StrToROption(got)
			assert.NoError(t, err)
		})
	}
}

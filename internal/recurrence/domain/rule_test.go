package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnchor(t *testing.T, start time.Time, d time.Duration, tz string) Anchor {
	t.Helper()
	a, err := NewAnchor(start, start.Add(d), tz)
	require.NoError(t, err)
	return a
}

func TestRule_Validate(t *testing.T) {
	anchor := testAnchor(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), time.Hour, "UTC")

	tests := []struct {
		name  string
		rule  Rule
		field string
	}{
		{"valid daily", Rule{Frequency: FrequencyDaily, Interval: 1}, ""},
		{"valid weekly with days", Rule{Frequency: FrequencyWeekly, Interval: 2, ByWeekday: []Weekday{Monday, Friday}}, ""},
		{"valid monthly by day", Rule{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: 31}, ""},
		{"valid yearly by day", Rule{Frequency: FrequencyYearly, Interval: 1, ByMonthDay: 15}, ""},
		{"valid count", Rule{Frequency: FrequencyDaily, Interval: 1, End: EndCount{N: 10}}, ""},
		{"valid until equal to start", Rule{Frequency: FrequencyDaily, Interval: 1, End: EndUntil{At: anchor.Start}}, ""},
		{"unknown frequency", Rule{Frequency: "HOURLY", Interval: 1}, "frequency"},
		{"zero interval", Rule{Frequency: FrequencyDaily, Interval: 0}, "interval"},
		{"interval too large", Rule{Frequency: FrequencyDaily, Interval: MaxInterval + 1}, "interval"},
		{"weekdays on daily", Rule{Frequency: FrequencyDaily, Interval: 1, ByWeekday: []Weekday{Monday}}, "byWeekday"},
		{"unknown weekday", Rule{Frequency: FrequencyWeekly, Interval: 1, ByWeekday: []Weekday{"XX"}}, "byWeekday"},
		{"month day too large", Rule{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: 32}, "byMonthDay"},
		{"negative month day", Rule{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: -1}, "byMonthDay"},
		{"month day on weekly", Rule{Frequency: FrequencyWeekly, Interval: 1, ByMonthDay: 3}, "byMonthDay"},
		{"zero count", Rule{Frequency: FrequencyDaily, Interval: 1, End: EndCount{N: 0}}, "end.count"},
		{"count too large", Rule{Frequency: FrequencyDaily, Interval: 1, End: EndCount{N: MaxCount + 1}}, "end.count"},
		{"until before start", Rule{Frequency: FrequencyDaily, Interval: 1, End: EndUntil{At: anchor.Start.Add(-time.Minute)}}, "end.until"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(anchor)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRule_ValidateRejectsUnknownTimezone(t *testing.T) {
	anchor := Anchor{
		Start:    time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		Timezone: "Mars/Olympus_Mons",
	}
	err := Rule{Frequency: FrequencyDaily, Interval: 1}.Validate(anchor)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "timezone", ve.Field)
}

func TestNewAnchor(t *testing.T) {
	start := time.Date(2024, 1, 3, 9, 0, 0, 123456789, time.UTC)

	t.Run("truncates to milliseconds", func(t *testing.T) {
		a, err := NewAnchor(start, start.Add(time.Hour), "")
		require.NoError(t, err)
		assert.Equal(t, 123000000, a.Start.Nanosecond())
		assert.Equal(t, "UTC", a.Timezone)
		assert.Equal(t, time.Hour, a.Duration())
	})

	t.Run("rejects end before start", func(t *testing.T) {
		_, err := NewAnchor(start, start.Add(-time.Minute), "UTC")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("allows zero duration", func(t *testing.T) {
		a, err := NewAnchor(start, start, "Europe/Berlin")
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", a.Location().String())
	})
}

func TestWeekday_RoundTrip(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		got, ok := WeekdayOf(d).TimeWeekday()
		require.True(t, ok)
		assert.Equal(t, d, got)
	}
	_, ok := Weekday("XX").TimeWeekday()
	assert.False(t, ok)
}

func TestRule_TerminationDefaultsToNever(t *testing.T) {
	assert.Equal(t, EndKindNever, Rule{}.Termination().Kind())
	assert.Equal(t, EndKindCount, Rule{End: EndCount{N: 2}}.Termination().Kind())
}

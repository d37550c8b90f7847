package commands

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// newTestEvent creates an event starting Monday 2024-01-01 09:00 UTC.
func newTestEvent(t *testing.T, recurring bool) *domain.Event {
	t.Helper()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	anchor, err := domain.NewAnchor(start, start.Add(time.Hour), "UTC")
	require.NoError(t, err)
	event, err := domain.NewEvent("Standup", anchor, testNow)
	require.NoError(t, err)
	if recurring {
		event.MarkRecurring(testNow)
	}
	return event
}

func TestSetRecurrenceRuleHandler_Handle(t *testing.T) {
	t.Run("stores rule and flags event recurring", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		ruleRepo := new(mockRuleRepo)
		overrideRepo := new(mockOverrideRepo)
		reminders := new(mockReminders)
		uow := new(mockUnitOfWork)
		event := newTestEvent(t, false)
		ctx := context.Background()

		uow.On("Begin", ctx).Return(ctx, nil)
		uow.On("Commit", ctx).Return(nil)
		eventRepo.On("FindByID", ctx, event.ID()).Return(event, nil)
		ruleRepo.On("Save", ctx, event.ID(), mock.AnythingOfType("domain.Rule"), testNow).Return(nil)
		eventRepo.On("Save", ctx, event).Return(nil)
		overrideRepo.On("FindByEventID", ctx, event.ID()).Return([]domain.Override{}, nil)
		reminders.On("PendingOccurrenceStarts", ctx, event.ID()).Return([]time.Time{}, nil)

		handler := NewSetRecurrenceRuleHandler(eventRepo, ruleRepo, overrideRepo, reminders, domain.Expander{}, uow, sharedDomain.FixedClock(testNow))
		rule, err := handler.Handle(ctx, SetRecurrenceRuleCommand{
			EventID: event.ID(),
			Rule:    RuleInput{Frequency: "WEEKLY", Interval: 1, ByWeekday: []string{"MO", "WE"}},
		})

		require.NoError(t, err)
		assert.Equal(t, domain.FrequencyWeekly, rule.Frequency)
		assert.True(t, event.IsRecurring())
		eventRepo.AssertExpectations(t)
		ruleRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("reconciles overrides and reminders no longer generated", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		ruleRepo := new(mockRuleRepo)
		overrideRepo := new(mockOverrideRepo)
		reminders := new(mockReminders)
		event := newTestEvent(t, true)
		ctx := context.Background()

		monday := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
		tuesday := time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)
		eventRepo.On("FindByID", ctx, event.ID()).Return(event, nil)
		ruleRepo.On("Save", ctx, event.ID(), mock.Anything, testNow).Return(nil)
		overrideRepo.On("FindByEventID", ctx, event.ID()).Return([]domain.Override{
			domain.NewCancellation(event.ID(), monday, testNow),
			domain.NewCancellation(event.ID(), tuesday, testNow),
		}, nil)
		overrideRepo.On("Delete", ctx, event.ID(), tuesday).Return(nil)
		reminders.On("PendingOccurrenceStarts", ctx, event.ID()).Return([]time.Time{monday, tuesday}, nil)
		reminders.On("CancelPendingForOccurrence", ctx, event.ID(), tuesday, testNow).Return(int64(1), nil)

		handler := NewSetRecurrenceRuleHandler(eventRepo, ruleRepo, overrideRepo, reminders, domain.Expander{}, nil, sharedDomain.FixedClock(testNow))
		_, err := handler.Handle(ctx, SetRecurrenceRuleCommand{
			EventID: event.ID(),
			Rule:    RuleInput{Frequency: "WEEKLY", Interval: 1, ByWeekday: []string{"MO"}},
		})

		require.NoError(t, err)
		overrideRepo.AssertExpectations(t)
		overrideRepo.AssertNotCalled(t, "Delete", ctx, event.ID(), monday)
		reminders.AssertExpectations(t)
		reminders.AssertNotCalled(t, "CancelPendingForOccurrence", ctx, event.ID(), monday, testNow)
		eventRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects rule invalid for anchor", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		ruleRepo := new(mockRuleRepo)
		uow := new(mockUnitOfWork)
		event := newTestEvent(t, false)
		ctx := context.Background()
		before := event.Anchor().Start.Add(-24 * time.Hour)

		uow.On("Begin", ctx).Return(ctx, nil)
		uow.On("Rollback", ctx).Return(nil)
		eventRepo.On("FindByID", ctx, event.ID()).Return(event, nil)

		handler := NewSetRecurrenceRuleHandler(eventRepo, ruleRepo, new(mockOverrideRepo), new(mockReminders), domain.Expander{}, uow, sharedDomain.FixedClock(testNow))
		_, err := handler.Handle(ctx, SetRecurrenceRuleCommand{
			EventID: event.ID(),
			Rule:    RuleInput{Frequency: "DAILY", Interval: 1, End: &EndInput{Type: "until", Until: &before}},
		})

		assert.ErrorIs(t, err, domain.ErrValidation)
		ruleRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		uow.AssertCalled(t, "Rollback", ctx)
	})

	t.Run("rejects malformed input before loading", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		handler := NewSetRecurrenceRuleHandler(eventRepo, new(mockRuleRepo), new(mockOverrideRepo), nil, domain.Expander{}, nil, sharedDomain.FixedClock(testNow))

		_, err := handler.Handle(context.Background(), SetRecurrenceRuleCommand{EventID: uuid.New(), Rule: RuleInput{Frequency: "DAILY"}})

		assert.ErrorIs(t, err, domain.ErrValidation)
		eventRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("event not found", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		ctx := context.Background()
		id := uuid.New()
		eventRepo.On("FindByID", ctx, id).Return(nil, domain.ErrEventNotFound)

		handler := NewSetRecurrenceRuleHandler(eventRepo, new(mockRuleRepo), new(mockOverrideRepo), nil, domain.Expander{}, nil, sharedDomain.FixedClock(testNow))
		_, err := handler.Handle(ctx, SetRecurrenceRuleCommand{EventID: id, Rule: RuleInput{Frequency: "DAILY", Interval: 1}})

		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}

func TestClearRecurrenceRuleHandler_Handle(t *testing.T) {
	eventRepo := new(mockEventRepo)
	ruleRepo := new(mockRuleRepo)
	overrideRepo := new(mockOverrideRepo)
	reminders := new(mockReminders)
	event := newTestEvent(t, true)
	ctx := context.Background()
	later := event.Anchor().Start.AddDate(0, 0, 7)

	eventRepo.On("FindByID", ctx, event.ID()).Return(event, nil)
	eventRepo.On("Save", ctx, event).Return(nil)
	ruleRepo.On("Delete", ctx, event.ID()).Return(nil)
	overrideRepo.On("FindByEventID", ctx, event.ID()).Return([]domain.Override{domain.NewCancellation(event.ID(), later, testNow)}, nil)
	overrideRepo.On("Delete", ctx, event.ID(), later).Return(nil)
	reminders.On("PendingOccurrenceStarts", ctx, event.ID()).Return([]time.Time{event.Anchor().Start, later}, nil)
	reminders.On("CancelPendingForOccurrence", ctx, event.ID(), later, testNow).Return(int64(2), nil)

	handler := NewClearRecurrenceRuleHandler(eventRepo, ruleRepo, overrideRepo, reminders, domain.Expander{}, nil, sharedDomain.FixedClock(testNow))
	err := handler.Handle(ctx, ClearRecurrenceRuleCommand{EventID: event.ID()})

	require.NoError(t, err)
	assert.False(t, event.IsRecurring())
	overrideRepo.AssertExpectations(t)
	reminders.AssertExpectations(t)
	reminders.AssertNumberOfCalls(t, "CancelPendingForOccurrence", 1)
}

package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockEventRepo struct {
	mock.Mock
}

func (m *mockEventRepo) Save(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *mockEventRepo) ListInWindow(ctx context.Context, window domain.Window) ([]*domain.Event, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

func (m *mockEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockRuleRepo struct {
	mock.Mock
}

func (m *mockRuleRepo) Save(ctx context.Context, eventID uuid.UUID, rule domain.Rule, now time.Time) error {
	args := m.Called(ctx, eventID, rule, now)
	return args.Error(0)
}

func (m *mockRuleRepo) FindByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Rule, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rule), args.Error(1)
}

func (m *mockRuleRepo) Delete(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type mockOverrideRepo struct {
	mock.Mock
}

func (m *mockOverrideRepo) Save(ctx context.Context, override domain.Override) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

func (m *mockOverrideRepo) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Override, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Override), args.Error(1)
}

func (m *mockOverrideRepo) Delete(ctx context.Context, eventID uuid.UUID, originalStart time.Time) error {
	args := m.Called(ctx, eventID, originalStart)
	return args.Error(0)
}

func (m *mockOverrideRepo) DeleteByEventID(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type mockReminders struct {
	mock.Mock
}

func (m *mockReminders) PendingOccurrenceStarts(ctx context.Context, eventID uuid.UUID) ([]time.Time, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *mockReminders) CancelPendingForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error) {
	args := m.Called(ctx, eventID, occurrenceStart, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReminders) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

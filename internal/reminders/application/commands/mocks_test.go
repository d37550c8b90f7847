package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, r *domain.Reminder) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reminder), args.Error(1)
}

func (m *mockRepository) FindActiveByDedupKey(ctx context.Context, key domain.DedupKey) (*domain.Reminder, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reminder), args.Error(1)
}

func (m *mockRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Reminder, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reminder), args.Error(1)
}

func (m *mockRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reminder), args.Error(1)
}

func (m *mockRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Claim, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Claim), args.Error(1)
}

func (m *mockRepository) MarkSent(ctx context.Context, claim domain.Claim, now time.Time) (bool, error) {
	args := m.Called(ctx, claim, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Release(ctx context.Context, claim domain.Claim, availableAt time.Time, lastError string, now time.Time) (bool, error) {
	args := m.Called(ctx, claim, availableAt, lastError, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) MarkFailed(ctx context.Context, claim domain.Claim, lastError string, now time.Time) (bool, error) {
	args := m.Called(ctx, claim, lastError, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) CancelPendingForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error) {
	args := m.Called(ctx, eventID, occurrenceStart, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) PendingOccurrenceStarts(ctx context.Context, eventID uuid.UUID) ([]time.Time, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *mockRepository) ReclaimAbandoned(ctx context.Context, claimedBefore time.Time, maxRetries int, now time.Time) (int64, int64, error) {
	args := m.Called(ctx, claimedBefore, maxRetries, now)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) LookupOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart mo.Option[time.Time]) (mo.Option[time.Time], time.Time, error) {
	args := m.Called(ctx, eventID, occurrenceStart)
	return args.Get(0).(mo.Option[time.Time]), args.Get(1).(time.Time), args.Error(2)
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

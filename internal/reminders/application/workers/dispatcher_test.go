package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/felixgeelhaar/cadence/pkg/observability"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 3, 8, 45, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingDeliverer struct {
	calls atomic.Int64
	fn    func(ctx context.Context, r *domain.Reminder) error
}

func (d *countingDeliverer) Deliver(ctx context.Context, r *domain.Reminder) error {
	d.calls.Add(1)
	if d.fn != nil {
		return d.fn(ctx, r)
	}
	return nil
}

func dueReminder(t *testing.T, remindAt time.Time) *domain.Reminder {
	t.Helper()
	occ := remindAt.Add(15 * time.Minute)
	r, err := domain.NewReminder(uuid.New(), mo.Some(occ), remindAt, domain.ChannelEmail, remindAt.Add(-time.Hour))
	require.NoError(t, err)
	return r
}

func testConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MaxRetries = 2
	cfg.BackoffBase = time.Minute
	cfg.BackoffMax = 10 * time.Minute
	cfg.DeliveryTimeout = time.Second
	return cfg
}

func TestDispatcher_DeliversDueReminders(t *testing.T) {
	due := dueReminder(t, t0)
	future := dueReminder(t, t0.Add(time.Hour))
	repo := newMemRepo(due, future)
	deliverer := &countingDeliverer{}
	metrics := observability.NewInMemoryMetrics()
	clock := &fakeClock{now: t0}

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, metrics, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	assert.Equal(t, int64(1), deliverer.calls.Load())
	sent := repo.get(due.ID)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, domain.StatusPending, repo.get(future.ID).Status)

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats.ClaimedCount)
	assert.Equal(t, uint64(1), stats.SentCount)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricRemindersSent, observability.T(observability.ChannelKey, "email")))
	assert.Len(t, metrics.GetTimings(observability.MetricDeliveryDuration, observability.T(observability.ChannelKey, "email")), 1)
}

func TestDispatcher_ConcurrentClaimsDeliverOnce(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	deliverer := &countingDeliverer{}
	clock := &fakeClock{now: t0}

	const dispatchers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < dispatchers; i++ {
		d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, d.ProcessOnce(context.Background()))
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), deliverer.calls.Load())
	assert.Equal(t, 1, repo.claims)
	assert.Equal(t, domain.StatusSent, repo.get(r.ID).Status)
}

func TestDispatcher_CancelledWhilePendingIsNeverSent(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	deliverer := &countingDeliverer{}
	clock := &fakeClock{now: t0}

	ok, err := repo.Cancel(context.Background(), r.ID, t0)
	require.NoError(t, err)
	require.True(t, ok)

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	assert.Zero(t, deliverer.calls.Load())
	assert.Zero(t, repo.claims)
	assert.Equal(t, domain.StatusCancelled, repo.get(r.ID).Status)
}

func TestDispatcher_CancelDuringDeliveryWins(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	clock := &fakeClock{now: t0}
	deliverer := &countingDeliverer{fn: func(ctx context.Context, rem *domain.Reminder) error {
		ok, err := repo.Cancel(ctx, rem.ID, t0)
		assert.NoError(t, err)
		assert.True(t, ok, "PROCESSING reminders are cancellable")
		return nil
	}}

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	assert.Equal(t, int64(1), deliverer.calls.Load(), "in-flight delivery is not interrupted")
	assert.Equal(t, domain.StatusCancelled, repo.get(r.ID).Status)
	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats.CancelledInFlight)
	assert.Zero(t, stats.SentCount)
}

func TestDispatcher_ReclaimedClaimIsNotSettledByStaleDelivery(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	clock := &fakeClock{now: t0}
	const visibility = 5 * time.Minute

	var second *domain.Claim
	deliverer := &countingDeliverer{fn: func(ctx context.Context, rem *domain.Reminder) error {
		// The delivery stalls past the visibility timeout; the sweeper
		// reclaims the row and another dispatcher claims it again.
		clock.Advance(visibility + time.Minute)
		reclaimed, _, err := repo.ReclaimAbandoned(ctx, clock.Now().Add(-visibility), 5, clock.Now())
		assert.NoError(t, err)
		assert.Equal(t, int64(1), reclaimed)

		claim, err := repo.Claim(ctx, rem.ID, clock.Now())
		assert.NoError(t, err)
		assert.NotNil(t, claim)
		second = claim
		return nil
	}}

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	got := repo.get(r.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status, "the late outcome must not settle the newer claim")
	require.NotNil(t, got.ClaimedAt)
	require.NotNil(t, second)
	assert.Equal(t, second.ClaimedAt, *got.ClaimedAt)
	assert.Zero(t, d.GetStats().SentCount)
	assert.Equal(t, uint64(1), d.GetStats().CancelledInFlight)

	released, err := repo.Release(context.Background(), *second, clock.Now().Add(time.Minute), "broker unavailable", clock.Now())
	require.NoError(t, err)
	assert.True(t, released, "the current claim still settles")
	final := repo.get(r.ID)
	assert.Equal(t, domain.StatusPending, final.Status)
	assert.Equal(t, 2, final.RetryCount)
}

func TestDispatcher_RetryDecisionUsesRetryCountAtClaim(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	cfg := testConfig()
	// Other dispatchers burned the remaining retries after this batch was read.
	repo.beforeClaim = func(id uuid.UUID) {
		repo.update(id, func(rem *domain.Reminder) { rem.RetryCount = cfg.MaxRetries })
	}
	clock := &fakeClock{now: t0}
	deliverer := &countingDeliverer{fn: func(context.Context, *domain.Reminder) error {
		return domain.Transient(errors.New("broker unavailable"))
	}}

	d := NewDispatcher(repo, deliverer, cfg, clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	got := repo.get(r.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, cfg.MaxRetries, got.RetryCount)
	assert.Zero(t, d.GetStats().RetriedCount)
	assert.Equal(t, uint64(1), d.GetStats().FailedCount)
}

func TestDispatcher_TransientErrorsRetryThenFail(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	clock := &fakeClock{now: t0}
	deliverer := &countingDeliverer{fn: func(context.Context, *domain.Reminder) error {
		return domain.Transient(errors.New("broker unavailable"))
	}}
	cfg := testConfig()
	d := NewDispatcher(repo, deliverer, cfg, clock.Now, nil, nil)
	ctx := context.Background()

	require.NoError(t, d.ProcessOnce(ctx))
	first := repo.get(r.ID)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, 1, first.RetryCount)
	require.NotNil(t, first.AvailableAt)
	assert.Equal(t, t0.Add(cfg.BackoffBase), *first.AvailableAt)
	assert.Contains(t, first.LastError, "broker unavailable")

	// Backoff has not elapsed yet.
	require.NoError(t, d.ProcessOnce(ctx))
	assert.Equal(t, int64(1), deliverer.calls.Load())

	clock.Advance(cfg.BackoffBase)
	require.NoError(t, d.ProcessOnce(ctx))
	second := repo.get(r.ID)
	assert.Equal(t, 2, second.RetryCount)
	assert.Equal(t, clock.Now().Add(2*cfg.BackoffBase), *second.AvailableAt)

	clock.Advance(2 * cfg.BackoffBase)
	require.NoError(t, d.ProcessOnce(ctx))

	final := repo.get(r.ID)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, 2, final.RetryCount)
	assert.Equal(t, int64(3), deliverer.calls.Load())

	stats := d.GetStats()
	assert.Equal(t, uint64(2), stats.RetriedCount)
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.NotEmpty(t, stats.LastError)
}

func TestDispatcher_PermanentErrorFailsImmediately(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	clock := &fakeClock{now: t0}
	deliverer := &countingDeliverer{fn: func(context.Context, *domain.Reminder) error {
		return domain.Permanent(errors.New("invalid address"))
	}}

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	got := repo.get(r.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Contains(t, got.LastError, "invalid address")
}

func TestDispatcher_UnclassifiedAndTimeoutErrorsAreRetried(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		r := dueReminder(t, t0)
		repo := newMemRepo(r)
		clock := &fakeClock{now: t0}
		deliverer := &countingDeliverer{fn: func(context.Context, *domain.Reminder) error {
			return errors.New("boom")
		}}

		d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
		require.NoError(t, d.ProcessOnce(context.Background()))

		assert.Equal(t, domain.StatusPending, repo.get(r.ID).Status)
		assert.Equal(t, 1, repo.get(r.ID).RetryCount)
	})

	t.Run("delivery timeout", func(t *testing.T) {
		r := dueReminder(t, t0)
		repo := newMemRepo(r)
		clock := &fakeClock{now: t0}
		deliverer := &countingDeliverer{fn: func(ctx context.Context, _ *domain.Reminder) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		cfg := testConfig()
		cfg.DeliveryTimeout = 20 * time.Millisecond

		d := NewDispatcher(repo, deliverer, cfg, clock.Now, nil, nil)
		require.NoError(t, d.ProcessOnce(context.Background()))

		got := repo.get(r.ID)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Contains(t, got.LastError, context.DeadlineExceeded.Error())
	})
}

func TestDispatcher_BatchFansOutAcrossWorkers(t *testing.T) {
	var reminders []*domain.Reminder
	for i := 0; i < 20; i++ {
		reminders = append(reminders, dueReminder(t, t0.Add(-time.Duration(i)*time.Minute)))
	}
	repo := newMemRepo(reminders...)
	clock := &fakeClock{now: t0}

	var inFlight, peak atomic.Int64
	deliverer := &countingDeliverer{fn: func(context.Context, *domain.Reminder) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}}
	cfg := testConfig()
	cfg.Workers = 3

	d := NewDispatcher(repo, deliverer, cfg, clock.Now, nil, nil)
	require.NoError(t, d.ProcessOnce(context.Background()))

	assert.Equal(t, int64(20), deliverer.calls.Load())
	assert.LessOrEqual(t, peak.Load(), int64(3))
	for _, r := range reminders {
		assert.Equal(t, domain.StatusSent, repo.get(r.ID).Status)
	}
}

func TestDispatcher_RetryBackoff(t *testing.T) {
	d := NewDispatcher(newMemRepo(), &countingDeliverer{}, DispatcherConfig{
		BackoffBase: 30 * time.Second,
		BackoffMax:  15 * time.Minute,
	}, nil, nil, nil)

	assert.Equal(t, 30*time.Second, d.retryBackoff(1))
	assert.Equal(t, time.Minute, d.retryBackoff(2))
	assert.Equal(t, 8*time.Minute, d.retryBackoff(5))
	assert.Equal(t, 15*time.Minute, d.retryBackoff(6))
	assert.Equal(t, 15*time.Minute, d.retryBackoff(200))
	assert.Equal(t, 30*time.Second, d.retryBackoff(0))
}

func TestDispatcher_StartStop(t *testing.T) {
	r := dueReminder(t, t0)
	repo := newMemRepo(r)
	deliverer := &countingDeliverer{}
	clock := &fakeClock{now: t0}

	d := NewDispatcher(repo, deliverer, testConfig(), clock.Now, nil, nil)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.IsRunning())

	assert.Eventually(t, func() bool {
		return repo.get(r.ID).Status == domain.StatusSent
	}, time.Second, 10*time.Millisecond)

	d.Stop()
	d.Stop()
	assert.False(t, d.IsRunning())
	assert.False(t, d.GetStats().IsRunning)
}

// Package workers contains the background processes that deliver reminders.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/cadence/pkg/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig holds configuration for the reminder dispatcher.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Workers bounds the deliveries in flight per batch.
	Workers int
	// MaxRetries is how many times a transient failure is retried before the
	// reminder becomes FAILED.
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	DeliveryTimeout time.Duration
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       100,
		Workers:         4,
		MaxRetries:      5,
		BackoffBase:     30 * time.Second,
		BackoffMax:      15 * time.Minute,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher polls for due reminders, claims them and hands them to the
// deliverer. Every status write is conditional, so any number of dispatchers
// may run against one store and a reminder is delivered at most once per
// claim.
type Dispatcher struct {
	repo      domain.Repository
	deliverer domain.Deliverer
	config    DispatcherConfig
	clock     sharedDomain.Clock
	metrics   observability.Metrics
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher creates a new reminder dispatcher.
func NewDispatcher(repo domain.Repository, deliverer domain.Deliverer, config DispatcherConfig, clock sharedDomain.Clock, metrics observability.Metrics, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	return &Dispatcher{
		repo:      repo,
		deliverer: deliverer,
		config:    config,
		clock:     clock,
		metrics:   metrics,
		logger:    observability.Component(logger, "dispatcher"),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the polling loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("reminder dispatcher started",
		"poll_interval", d.config.PollInterval,
		"batch_size", d.config.BatchSize,
		"workers", d.config.Workers,
	)
	return nil
}

// Stop stops polling and waits for the current batch to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("reminder dispatcher stopped")
}

// IsRunning returns true if the dispatcher is running.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			if err := d.processBatch(ctx); err != nil {
				d.logger.Error("failed to process reminder batch", "error", err)
			}
		}
	}
}

// ProcessOnce processes a single batch synchronously.
func (d *Dispatcher) ProcessOnce(ctx context.Context) error {
	return d.processBatch(ctx)
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	now := d.clock.Now()
	due, err := d.repo.FindDue(ctx, now, d.config.BatchSize)
	if err != nil {
		d.recordError(err)
		return err
	}
	d.recordProcessed(due, now)

	var g errgroup.Group
	g.SetLimit(d.config.Workers)

	seen := make(map[uuid.UUID]struct{}, len(due))
	for _, r := range due {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		g.Go(func() error {
			d.dispatch(ctx, r)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, r *domain.Reminder) {
	ctx = observability.WithReminderID(observability.WithEventID(ctx, r.EventID.String()), r.ID.String())
	channel := observability.T(observability.ChannelKey, string(r.Channel))

	claim, err := d.repo.Claim(ctx, r.ID, d.clock.Now())
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to claim reminder", "error", err)
		d.recordError(err)
		return
	}
	if claim == nil {
		// Another dispatcher got there first, or the user cancelled it.
		d.bump(func(s *Stats) { s.SkippedCount++ })
		d.metrics.Counter(observability.MetricRemindersSkipped, 1, channel)
		return
	}
	d.bump(func(s *Stats) { s.ClaimedCount++ })
	d.metrics.Counter(observability.MetricRemindersClaimed, 1, channel)

	start := time.Now()
	deliverErr := d.deliver(ctx, r)
	d.metrics.Timing(observability.MetricDeliveryDuration, time.Since(start), channel)

	now := d.clock.Now()
	switch {
	case deliverErr == nil:
		if d.settle(ctx, "sent", func() (bool, error) { return d.repo.MarkSent(ctx, *claim, now) }, func(s *Stats) { s.SentCount++ }) {
			d.metrics.Counter(observability.MetricRemindersSent, 1, channel)
		}

	case domain.IsPermanent(deliverErr) || claim.RetryCount >= d.config.MaxRetries:
		d.logger.WarnContext(ctx, "reminder delivery failed",
			"error", deliverErr,
			"retry_count", claim.RetryCount,
			"permanent", domain.IsPermanent(deliverErr),
		)
		d.recordError(deliverErr)
		if d.settle(ctx, "failed", func() (bool, error) { return d.repo.MarkFailed(ctx, *claim, deliverErr.Error(), now) }, func(s *Stats) { s.FailedCount++ }) {
			d.metrics.Counter(observability.MetricRemindersFailed, 1, channel)
		}

	default:
		next := claim.RetryCount + 1
		availableAt := now.Add(d.retryBackoff(next))
		d.logger.WarnContext(ctx, "reminder delivery will be retried",
			"error", deliverErr,
			"retry_count", next,
			"available_at", availableAt,
		)
		d.recordError(deliverErr)
		released := d.settle(ctx, "released", func() (bool, error) {
			return d.repo.Release(ctx, *claim, availableAt, deliverErr.Error(), now)
		}, func(s *Stats) { s.RetriedCount++ })
		if released {
			d.metrics.Counter(observability.MetricRemindersRetried, 1, channel)
		}
	}
}

// deliver runs the deliverer under the delivery timeout. A timeout is an
// unclassified error and therefore retried.
func (d *Dispatcher) deliver(ctx context.Context, r *domain.Reminder) error {
	if d.config.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DeliveryTimeout)
		defer cancel()
	}
	return d.deliverer.Deliver(ctx, r)
}

// settle performs a terminal or release write. The write only applies while
// the reminder is still PROCESSING under this claim; losing it means the user
// cancelled during delivery or the claim was reclaimed as abandoned, and the
// newer state stands.
func (d *Dispatcher) settle(ctx context.Context, outcome string, write func() (bool, error), count func(*Stats)) bool {
	applied, err := write()
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record reminder outcome", "outcome", outcome, "error", err)
		d.recordError(err)
		return false
	}
	if !applied {
		d.logger.InfoContext(ctx, "reminder claim lost during delivery", "outcome", outcome)
		d.bump(func(s *Stats) { s.CancelledInFlight++ })
		return false
	}
	d.bump(count)
	return true
}

func (d *Dispatcher) retryBackoff(nextRetryCount int) time.Duration {
	base := d.config.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	max := d.config.BackoffMax
	if max <= 0 {
		max = time.Minute
	}
	if nextRetryCount < 1 {
		nextRetryCount = 1
	}

	shift := convert.IntToUintClamped(nextRetryCount - 1)
	if shift > 30 {
		return max
	}
	backoff := base * time.Duration(1<<shift)
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}

// Stats returns dispatcher statistics.
type Stats struct {
	IsRunning         bool
	ClaimedCount      uint64
	SentCount         uint64
	RetriedCount      uint64
	FailedCount       uint64
	SkippedCount      uint64
	CancelledInFlight uint64
	LagSeconds        float64
	LastError         string
	LastErrorAt       *time.Time
	LastProcessedAt   *time.Time
}

// GetStats returns current dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.statsMu.Lock()
	stats := d.stats
	d.statsMu.Unlock()

	stats.IsRunning = d.IsRunning()
	return stats
}

func (d *Dispatcher) bump(fn func(*Stats)) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	fn(&d.stats)
}

func (d *Dispatcher) recordError(err error) {
	d.bump(func(s *Stats) {
		now := time.Now()
		s.LastError = err.Error()
		s.LastErrorAt = &now
	})
}

func (d *Dispatcher) recordProcessed(due []*domain.Reminder, now time.Time) {
	lag := 0.0
	if len(due) > 0 {
		oldest := due[0].RemindAt
		for _, r := range due[1:] {
			if r.RemindAt.Before(oldest) {
				oldest = r.RemindAt
			}
		}
		lag = now.Sub(oldest).Seconds()
	}
	d.metrics.Gauge(observability.MetricDispatchLag, lag)

	d.bump(func(s *Stats) {
		s.LastProcessedAt = &now
		s.LagSeconds = lag
	})
}

package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/pkg/observability"
	"github.com/robfig/cron/v3"
)

// SweeperConfig holds configuration for the maintenance sweeps.
type SweeperConfig struct {
	// SweepSchedule drives reclaiming abandoned claims.
	SweepSchedule string
	// CleanupSchedule drives purging old terminal reminders.
	CleanupSchedule string
	// VisibilityTimeout is how long a claim may stay PROCESSING before it
	// is treated as abandoned.
	VisibilityTimeout time.Duration
	Retention         time.Duration
	MaxRetries        int
}

// DefaultSweeperConfig returns sensible defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepSchedule:     "@every 1m",
		CleanupSchedule:   "@daily",
		VisibilityTimeout: 5 * time.Minute,
		Retention:         30 * 24 * time.Hour,
		MaxRetries:        5,
	}
}

// Sweeper runs the cron-scheduled maintenance jobs of the reminder store.
type Sweeper struct {
	repo    domain.Repository
	config  SweeperConfig
	clock   sharedDomain.Clock
	metrics observability.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a new Sweeper.
func NewSweeper(repo domain.Repository, config SweeperConfig, clock sharedDomain.Clock, metrics observability.Metrics, logger *slog.Logger) *Sweeper {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Sweeper{
		repo:    repo,
		config:  config,
		clock:   clock,
		metrics: metrics,
		logger:  observability.Component(logger, "sweeper"),
	}
}

// Start schedules both jobs. Invalid schedules are reported before anything
// runs.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.config.SweepSchedule, func() {
		if _, _, err := s.ReclaimOnce(ctx); err != nil {
			s.logger.Error("failed to reclaim abandoned reminders", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.SweepSchedule, err)
	}
	if _, err := c.AddFunc(s.config.CleanupSchedule, func() {
		if _, err := s.PurgeOnce(ctx); err != nil {
			s.logger.Error("failed to purge terminal reminders", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.config.CleanupSchedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("reminder sweeper started",
		"sweep_schedule", s.config.SweepSchedule,
		"cleanup_schedule", s.config.CleanupSchedule,
	)
	return nil
}

// Stop stops scheduling and waits for running jobs.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("reminder sweeper stopped")
}

// ReclaimOnce resets reminders that have been PROCESSING longer than the
// visibility timeout.
func (s *Sweeper) ReclaimOnce(ctx context.Context) (reclaimed, failed int64, err error) {
	now := s.clock.Now()
	reclaimed, failed, err = s.repo.ReclaimAbandoned(ctx, now.Add(-s.config.VisibilityTimeout), s.config.MaxRetries, now)
	if err != nil {
		return 0, 0, err
	}
	if reclaimed > 0 || failed > 0 {
		s.logger.Warn("reclaimed abandoned reminders", "reclaimed", reclaimed, "failed", failed)
		s.metrics.Counter(observability.MetricRemindersReclaimed, reclaimed)
		s.metrics.Counter(observability.MetricRemindersFailed, failed, observability.T("reason", "abandoned"))
	}
	return reclaimed, failed, nil
}

// PurgeOnce deletes terminal reminders older than the retention period.
func (s *Sweeper) PurgeOnce(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteTerminalOlderThan(ctx, s.clock.Now().Add(-s.config.Retention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("purged terminal reminders", "count", purged)
		s.metrics.Counter(observability.MetricRemindersPurged, purged)
	}
	return purged, nil
}

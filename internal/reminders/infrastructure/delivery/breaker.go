package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/felixgeelhaar/cadence/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a delivery circuit breaker.
type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive transient failures that
	// opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
}

// Breaker stops calling a failing deliverer for a while. While open, every
// delivery fails fast with a transient error so reminders back off instead
// of piling onto a dead broker. Permanent errors are about the reminder, not
// the broker, and do not count as failures.
type Breaker struct {
	next    domain.Deliverer
	cb      *gobreaker.CircuitBreaker[struct{}]
	metrics observability.Metrics
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next domain.Deliverer, cfg BreakerConfig, metrics observability.Metrics, logger *slog.Logger) *Breaker {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	logger = observability.Component(logger, "delivery_breaker")
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}

	b := &Breaker{next: next, metrics: metrics}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: maxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			open := 0.0
			if to == gobreaker.StateOpen {
				open = 1
			}
			metrics.Gauge(observability.MetricBreakerState, open, observability.T("breaker", name))
		},
	})
	return b
}

// Deliver calls the wrapped deliverer unless the breaker is open.
func (b *Breaker) Deliver(ctx context.Context, r *domain.Reminder) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Deliver(ctx, r)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return domain.Transient(fmt.Errorf("%s: %w", b.cb.Name(), err))
	}
	return err
}

// State reports the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

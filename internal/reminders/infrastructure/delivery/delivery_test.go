package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cadence/pkg/observability"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var occ = time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)

func testReminder(t *testing.T, channel domain.Channel) *domain.Reminder {
	t.Helper()
	r, err := domain.NewReminder(uuid.New(), mo.Some(occ), occ.Add(-15*time.Minute), channel, occ.Add(-time.Hour))
	require.NoError(t, err)
	return r
}

type capture struct {
	keys     []string
	payloads [][]byte
}

func (c *capture) RoutingKeys() []string { return c.keys }

func (c *capture) Handle(_ context.Context, msg eventbus.Message) error {
	c.payloads = append(c.payloads, msg.Payload)
	return nil
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, string, []byte) error { return p.err }
func (p failingPublisher) Close() error                                 { return nil }

func TestPublisherDeliverer(t *testing.T) {
	bus := eventbus.NewInProcessBus(nil)
	sink := &capture{keys: []string{"reminder.email"}}
	bus.Register(sink)
	r := testReminder(t, domain.ChannelEmail)
	r.RetryCount = 2

	require.NoError(t, NewPublisherDeliverer(bus).Deliver(context.Background(), r))

	require.Len(t, sink.payloads, 1)
	var n Notification
	require.NoError(t, json.Unmarshal(sink.payloads[0], &n))
	assert.Equal(t, r.ID, n.ReminderID)
	assert.Equal(t, r.EventID, n.EventID)
	require.NotNil(t, n.OccurrenceStart)
	assert.True(t, occ.Equal(*n.OccurrenceStart))
	assert.Equal(t, "email", n.Channel)
	assert.Equal(t, 3, n.Attempt)
}

func TestPublisherDeliverer_BrokerErrorsAreTransient(t *testing.T) {
	boom := errors.New("connection reset")
	err := NewPublisherDeliverer(failingPublisher{err: boom}).Deliver(context.Background(), testReminder(t, domain.ChannelSMS))

	var transient *domain.TransientError
	require.ErrorAs(t, err, &transient)
	assert.ErrorIs(t, err, boom)
	assert.False(t, domain.IsPermanent(err))
}

func TestRouter(t *testing.T) {
	var got []domain.Channel
	record := domain.DelivererFunc(func(_ context.Context, r *domain.Reminder) error {
		got = append(got, r.Channel)
		return nil
	})
	router := NewRouter().Route(record, domain.ChannelEmail, domain.ChannelSMS)

	require.NoError(t, router.Deliver(context.Background(), testReminder(t, domain.ChannelEmail)))
	require.NoError(t, router.Deliver(context.Background(), testReminder(t, domain.ChannelSMS)))
	assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, got)

	err := router.Deliver(context.Background(), testReminder(t, domain.ChannelPush))
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.True(t, domain.IsPermanent(err))
}

func TestBreaker(t *testing.T) {
	t.Run("opens after consecutive transient failures", func(t *testing.T) {
		calls := 0
		failing := domain.DelivererFunc(func(context.Context, *domain.Reminder) error {
			calls++
			return domain.Transient(errors.New("broker down"))
		})
		metrics := observability.NewInMemoryMetrics()
		b := NewBreaker(failing, BreakerConfig{Name: "rabbitmq", FailureThreshold: 2, OpenTimeout: time.Hour}, metrics, nil)
		r := testReminder(t, domain.ChannelEmail)

		for i := 0; i < 2; i++ {
			assert.Error(t, b.Deliver(context.Background(), r))
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())
		assert.Equal(t, 1.0, metrics.GetGauge(observability.MetricBreakerState, observability.T("breaker", "rabbitmq")))

		err := b.Deliver(context.Background(), r)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.False(t, domain.IsPermanent(err))
		assert.Equal(t, 2, calls, "open breaker does not call through")
	})

	t.Run("permanent errors do not trip", func(t *testing.T) {
		permanent := domain.DelivererFunc(func(context.Context, *domain.Reminder) error {
			return domain.Permanent(errors.New("bad address"))
		})
		b := NewBreaker(permanent, BreakerConfig{Name: "smtp", FailureThreshold: 1, OpenTimeout: time.Hour}, nil, nil)
		r := testReminder(t, domain.ChannelEmail)

		for i := 0; i < 3; i++ {
			assert.True(t, domain.IsPermanent(b.Deliver(context.Background(), r)))
		}
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})

	t.Run("success passes through", func(t *testing.T) {
		ok := domain.DelivererFunc(func(context.Context, *domain.Reminder) error { return nil })
		b := NewBreaker(ok, BreakerConfig{Name: "redis"}, nil, nil)
		assert.NoError(t, b.Deliver(context.Background(), testReminder(t, domain.ChannelInApp)))
	})
}

// Package app wires configuration, storage, delivery and workers into a
// running cadence instance.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	recurrenceCommands "github.com/felixgeelhaar/cadence/internal/recurrence/application/commands"
	recurrenceQueries "github.com/felixgeelhaar/cadence/internal/recurrence/application/queries"
	recurrenceDomain "github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	reminderCommands "github.com/felixgeelhaar/cadence/internal/reminders/application/commands"
	reminderQueries "github.com/felixgeelhaar/cadence/internal/reminders/application/queries"
	"github.com/felixgeelhaar/cadence/internal/reminders/application/workers"
	reminderDomain "github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/felixgeelhaar/cadence/internal/reminders/infrastructure/delivery"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/cadence/pkg/config"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

// brokerChannels are delivered through RabbitMQ.
var brokerChannels = []reminderDomain.Channel{
	reminderDomain.ChannelEmail,
	reminderDomain.ChannelSMS,
	reminderDomain.ChannelPush,
}

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   sharedDomain.Clock
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	Repos      *Repositories
	UnitOfWork sharedApplication.UnitOfWork

	// Publishers. BrokerPublisher carries email, sms and push; InAppPublisher
	// carries in_app. Both fall back to LocalBus when their broker is not
	// configured.
	BrokerPublisher eventbus.Publisher
	InAppPublisher  eventbus.Publisher
	LocalBus        *eventbus.InProcessBus
	Deliverer       reminderDomain.Deliverer

	// Recurrence command handlers
	CreateEventHandler *recurrenceCommands.CreateEventHandler
	DeleteEventHandler *recurrenceCommands.DeleteEventHandler
	SetRuleHandler     *recurrenceCommands.SetRecurrenceRuleHandler
	ClearRuleHandler   *recurrenceCommands.ClearRecurrenceRuleHandler
	OccurrenceHandler  *recurrenceCommands.OccurrenceHandler

	// Recurrence query handlers
	GetSeriesHandler       *recurrenceQueries.GetSeriesHandler
	ListOccurrencesHandler *recurrenceQueries.ListOccurrencesHandler
	FindOccurrenceHandler  *recurrenceQueries.FindOccurrenceHandler
	ListCalendarHandler    *recurrenceQueries.ListCalendarHandler

	// Reminder handlers
	ScheduleReminderHandler *reminderCommands.ScheduleReminderHandler
	CancelReminderHandler   *reminderCommands.CancelReminderHandler
	ListRemindersHandler    *reminderQueries.ListRemindersHandler

	// Workers
	Dispatcher *workers.Dispatcher
	Sweeper    *workers.Sweeper

	closers []func() error
}

// Option customises a container before its handlers are built.
type Option func(*Container)

// WithClock replaces the system clock.
func WithClock(clock sharedDomain.Clock) Option {
	return func(c *Container) { c.Clock = clock }
}

// WithMetrics replaces the no-op metrics sink.
func WithMetrics(m observability.Metrics) Option {
	return func(c *Container) { c.Metrics = m }
}

// NewContainer connects to the configured database, applies migrations and
// builds every handler and worker. An empty DatabaseURL selects SQLite.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Clock:   sharedDomain.SystemClock,
		Metrics: observability.NoopMetrics{},
		Health:  observability.NewHealthRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.closers = append(c.closers, conn.Close)
	c.Health.Register("database", observability.PingChecker("database", true, conn.Ping))

	if !cfg.SkipMigrations {
		if err := migrations.Run(ctx, conn); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	logger.Info("connected to database", "driver", c.DBDriver)

	if err := c.initPublishers(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Repos = NewRepositories(conn)
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.initHandlers()
	c.initWorkers()
	return c, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (database.Connection, error) {
	dbCfg := database.Config{URL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath}
	if cfg.UsesSQLite() {
		dbCfg.Driver = database.DriverSQLite
		if dbCfg.SQLitePath == "" {
			dbCfg.SQLitePath = database.DefaultSQLitePath()
		}
	}
	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// initPublishers connects the brokers. Outside development a configured but
// unreachable broker is fatal; in development it degrades to the local bus.
func (c *Container) initPublishers(ctx context.Context) error {
	keys := make([]string, 0, len(reminderDomain.Channels()))
	for _, ch := range reminderDomain.Channels() {
		keys = append(keys, delivery.RoutingKey(ch))
	}
	c.LocalBus = eventbus.NewInProcessBus(c.Logger)
	c.LocalBus.Register(eventbus.NewLogHandler(c.Logger, keys...))
	c.BrokerPublisher = c.LocalBus
	c.InAppPublisher = c.LocalBus

	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		switch {
		case err == nil:
			c.BrokerPublisher = publisher
			c.closers = append(c.closers, publisher.Close)
			c.Health.Register("rabbitmq", observability.PingChecker("rabbitmq", false, publisher.Ping))
		case c.Config.IsDevelopment():
			c.Logger.Warn("RabbitMQ not available, using local bus", "error", err)
		default:
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	}

	if c.Config.RedisURL != "" {
		publisher, err := eventbus.NewRedisPublisher(ctx, c.Config.RedisURL, c.Logger)
		switch {
		case err == nil:
			c.InAppPublisher = publisher
			c.closers = append(c.closers, publisher.Close)
			c.Health.Register("redis", observability.PingChecker("redis", false, publisher.Ping))
		case c.Config.IsDevelopment():
			c.Logger.Warn("Redis not available, using local bus", "error", err)
		default:
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	c.Deliverer = delivery.NewRouter().
		Route(c.breaker("broker", c.BrokerPublisher), brokerChannels...).
		Route(c.breaker("in_app", c.InAppPublisher), reminderDomain.ChannelInApp)
	return nil
}

func (c *Container) breaker(name string, p eventbus.Publisher) reminderDomain.Deliverer {
	return delivery.NewBreaker(delivery.NewPublisherDeliverer(p), delivery.BreakerConfig{
		Name:             name,
		FailureThreshold: convert.IntToUint32Clamped(c.Config.BreakerFailureThreshold),
		OpenTimeout:      c.Config.BreakerOpenTimeout,
	}, c.Metrics, c.Logger)
}

func (c *Container) initHandlers() {
	r := c.Repos
	loader := r.SeriesLoader()
	expander := recurrenceDomain.NewExpander(c.Config.ExpansionMaxCandidates)
	resolver := recurrenceDomain.NewResolver(expander)

	c.CreateEventHandler = recurrenceCommands.NewCreateEventHandler(r.Events, r.Rules, c.UnitOfWork, c.Clock)
	c.DeleteEventHandler = recurrenceCommands.NewDeleteEventHandler(r.Events, r.Rules, r.Overrides, r.Reminders, c.UnitOfWork)
	c.SetRuleHandler = recurrenceCommands.NewSetRecurrenceRuleHandler(r.Events, r.Rules, r.Overrides, r.Reminders, expander, c.UnitOfWork, c.Clock)
	c.ClearRuleHandler = recurrenceCommands.NewClearRecurrenceRuleHandler(r.Events, r.Rules, r.Overrides, r.Reminders, expander, c.UnitOfWork, c.Clock)
	c.OccurrenceHandler = recurrenceCommands.NewOccurrenceHandler(loader, r.Reminders, expander, c.UnitOfWork, c.Clock)

	c.GetSeriesHandler = recurrenceQueries.NewGetSeriesHandler(loader)
	c.ListOccurrencesHandler = recurrenceQueries.NewListOccurrencesHandler(loader, resolver)
	c.FindOccurrenceHandler = recurrenceQueries.NewFindOccurrenceHandler(loader, resolver)
	c.ListCalendarHandler = recurrenceQueries.NewListCalendarHandler(loader, resolver)

	c.ScheduleReminderHandler = reminderCommands.NewScheduleReminderHandler(r.Reminders, c.FindOccurrenceHandler, c.UnitOfWork, c.Clock)
	c.CancelReminderHandler = reminderCommands.NewCancelReminderHandler(r.Reminders, c.Clock)
	c.ListRemindersHandler = reminderQueries.NewListRemindersHandler(r.Reminders)
}

func (c *Container) initWorkers() {
	cfg := c.Config
	c.Dispatcher = workers.NewDispatcher(c.Repos.Reminders, c.Deliverer, workers.DispatcherConfig{
		PollInterval:    cfg.DispatchPollInterval,
		BatchSize:       cfg.DispatchBatchSize,
		Workers:         cfg.DispatchWorkers,
		MaxRetries:      cfg.DispatchMaxRetries,
		BackoffBase:     cfg.DispatchBackoffBase,
		BackoffMax:      cfg.DispatchBackoffMax,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}, c.Clock, c.Metrics, c.Logger)

	c.Sweeper = workers.NewSweeper(c.Repos.Reminders, workers.SweeperConfig{
		SweepSchedule:     cfg.SweepSchedule,
		CleanupSchedule:   cfg.CleanupSchedule,
		VisibilityTimeout: cfg.DispatchVisibilityTimeout,
		Retention:         time.Duration(cfg.ReminderRetentionDays) * 24 * time.Hour,
		MaxRetries:        cfg.DispatchMaxRetries,
	}, c.Clock, c.Metrics, c.Logger)
}

// Close stops the workers and releases connections in reverse order of
// acquisition.
func (c *Container) Close() {
	if c.Dispatcher != nil && c.Dispatcher.IsRunning() {
		c.Dispatcher.Stop()
	}
	if c.Sweeper != nil {
		c.Sweeper.Stop()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("error closing resource", "error", err)
		}
	}
	c.closers = nil
}

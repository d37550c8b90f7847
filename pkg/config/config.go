package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/security"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	// Database. An empty DatabaseURL selects the local SQLite file.
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	// SkipMigrations leaves schema changes to the migrate command.
	SkipMigrations bool `yaml:"skip_migrations"`

	// Redis carries in-app reminder deliveries. Empty disables it.
	RedisURL string `yaml:"redis_url"`

	// RabbitMQ carries email, sms and push deliveries. Empty disables it.
	RabbitMQURL string `yaml:"rabbitmq_url"`

	// HTTP
	APIAddr          string `yaml:"api_addr"`
	WorkerHealthAddr string `yaml:"worker_health_addr"`

	// Expansion
	ExpansionMaxCandidates int `yaml:"expansion_max_candidates"`

	// Dispatcher
	DispatchPollInterval      time.Duration `yaml:"dispatch_poll_interval"`
	DispatchBatchSize         int           `yaml:"dispatch_batch_size"`
	DispatchWorkers           int           `yaml:"dispatch_workers"`
	DispatchMaxRetries        int           `yaml:"dispatch_max_retries"`
	DispatchBackoffBase       time.Duration `yaml:"dispatch_backoff_base"`
	DispatchBackoffMax        time.Duration `yaml:"dispatch_backoff_max"`
	DispatchVisibilityTimeout time.Duration `yaml:"dispatch_visibility_timeout"`
	DeliveryTimeout           time.Duration `yaml:"delivery_timeout"`
	BreakerFailureThreshold   int           `yaml:"breaker_failure_threshold"`
	BreakerOpenTimeout        time.Duration `yaml:"breaker_open_timeout"`

	// Sweeper
	SweepSchedule         string `yaml:"sweep_schedule"`
	CleanupSchedule       string `yaml:"cleanup_schedule"`
	ReminderRetentionDays int    `yaml:"reminder_retention_days"`
}

// Load loads configuration from environment variables. Malformed values and
// inconsistent settings are reported rather than replaced by defaults.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", ""),
		SkipMigrations: env.getBoolEnv("SKIP_MIGRATIONS", false),
		RedisURL:       getEnv("REDIS_URL", ""),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),

		APIAddr:          getEnv("API_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		ExpansionMaxCandidates: env.getIntEnv("EXPANSION_MAX_CANDIDATES", 10000),

		DispatchPollInterval:      env.getDurationEnv("DISPATCH_POLL_INTERVAL", 5*time.Second),
		DispatchBatchSize:         env.getIntEnv("DISPATCH_BATCH_SIZE", 100),
		DispatchWorkers:           env.getIntEnv("DISPATCH_WORKERS", 4),
		DispatchMaxRetries:        env.getIntEnv("DISPATCH_MAX_RETRIES", 5),
		DispatchBackoffBase:       env.getDurationEnv("DISPATCH_BACKOFF_BASE", 30*time.Second),
		DispatchBackoffMax:        env.getDurationEnv("DISPATCH_BACKOFF_MAX", 15*time.Minute),
		DispatchVisibilityTimeout: env.getDurationEnv("DISPATCH_VISIBILITY_TIMEOUT", 5*time.Minute),
		DeliveryTimeout:           env.getDurationEnv("DELIVERY_TIMEOUT", 10*time.Second),
		BreakerFailureThreshold:   env.getIntEnv("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerOpenTimeout:        env.getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		SweepSchedule:         getEnv("SWEEP_SCHEDULE", "@every 1m"),
		CleanupSchedule:       getEnv("CLEANUP_SCHEDULE", "@daily"),
		ReminderRetentionDays: env.getIntEnv("REMINDER_RETENTION_DAYS", 30),
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the environment configuration and overlays the YAML file
// at path. Keys absent from the file keep their environment value.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := security.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks counts, durations and schedules. A delivery must time out
// before its claim can be reclaimed as abandoned, so DeliveryTimeout has to
// be shorter than DispatchVisibilityTimeout.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positiveDuration := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	schedule := func(name, spec string) {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, spec, err))
		}
	}

	positive("expansion_max_candidates", c.ExpansionMaxCandidates)
	positive("dispatch_batch_size", c.DispatchBatchSize)
	positive("dispatch_workers", c.DispatchWorkers)
	if c.DispatchMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("dispatch_max_retries must not be negative, got %d", c.DispatchMaxRetries))
	}
	positive("breaker_failure_threshold", c.BreakerFailureThreshold)
	positive("reminder_retention_days", c.ReminderRetentionDays)

	positiveDuration("dispatch_poll_interval", c.DispatchPollInterval)
	positiveDuration("dispatch_backoff_base", c.DispatchBackoffBase)
	positiveDuration("dispatch_backoff_max", c.DispatchBackoffMax)
	positiveDuration("dispatch_visibility_timeout", c.DispatchVisibilityTimeout)
	positiveDuration("delivery_timeout", c.DeliveryTimeout)
	positiveDuration("breaker_open_timeout", c.BreakerOpenTimeout)

	if c.DispatchBackoffMax < c.DispatchBackoffBase {
		errs = append(errs, fmt.Errorf("dispatch_backoff_max (%s) must not be below dispatch_backoff_base (%s)",
			c.DispatchBackoffMax, c.DispatchBackoffBase))
	}
	if c.DeliveryTimeout >= c.DispatchVisibilityTimeout {
		errs = append(errs, fmt.Errorf("delivery_timeout (%s) must be shorter than dispatch_visibility_timeout (%s)",
			c.DeliveryTimeout, c.DispatchVisibilityTimeout))
	}

	schedule("sweep_schedule", c.SweepSchedule)
	schedule("cleanup_schedule", c.CleanupSchedule)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesSQLite reports whether the local SQLite store is selected.
func (c *Config) UsesSQLite() bool {
	return c.DatabaseURL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed environment values, collecting malformed ones.
type envReader struct {
	errs []error
}

func (e *envReader) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return i
}

func (e *envReader) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, value))
		return defaultValue
	}
	return d
}

func (e *envReader) getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return b
}

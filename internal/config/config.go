// Package config loads the runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration for the server, the worker and the
// tools.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	EventsStream string `envconfig:"EVENTS_STREAM" default:"stockledger:events"`
	EventsMaxLen int64  `envconfig:"EVENTS_MAX_LEN" default:"100000"`

	IdempotencyEnabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	RateLimitPerMinute int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`
	MetricsEnabled     bool `envconfig:"METRICS_ENABLED" default:"true"`

	Worker WorkerConfig
}

// WorkerConfig configures the background worker and its schedule.
type WorkerConfig struct {
	Concurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	MetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	OutboxBatchSize  int `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	ReservationBatch int `envconfig:"RESERVATION_EXPIRY_BATCH" default:"200"`

	CronOutboxRelay        string `envconfig:"CRON_OUTBOX_RELAY" default:"@every 10s"`
	CronIdempotencyCleanup string `envconfig:"CRON_IDEMPOTENCY_CLEANUP" default:"@hourly"`
	CronAlertScan          string `envconfig:"CRON_ALERT_SCAN" default:"*/15 * * * *"`
	CronOccupancyVerify    string `envconfig:"CRON_OCCUPANCY_VERIFY" default:"0 3 * * *"`
	CronReservationExpiry  string `envconfig:"CRON_RESERVATION_EXPIRY" default:"*/5 * * * *"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

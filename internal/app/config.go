package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends accepted by USER_STORE and SESSION_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	UserStore    string `envconfig:"USER_STORE" default:"memory"`
	SessionStore string `envconfig:"SESSION_STORE" default:"memory"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	SessionCookie        string        `envconfig:"SESSION_COOKIE" default:"sessionId"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1h"`
	SessionSweepCron     string        `envconfig:"SESSION_SWEEP_CRON" default:"@every 1h"`

	BcryptCost         int `envconfig:"AUTH_BCRYPT_COST" default:"10"`
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.UserStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unsupported USER_STORE %q", c.UserStore)
	}
	switch c.SessionStore {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.UserStore != StorePostgres {
			return errors.New("postgres sessions require USER_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}
	if c.UsesPostgres() && c.PGDSN == "" {
		return errors.New("PG_DSN must be provided for postgres stores")
	}
	if c.SessionStore == StoreRedis && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR must be provided for redis sessions")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.SessionSweepInterval < 0 {
		return errors.New("session sweep interval must not be negative")
	}
	return nil
}

// UsesPostgres reports whether any store is backed by Postgres.
func (c *Config) UsesPostgres() bool {
	return c.UserStore == StorePostgres || c.SessionStore == StorePostgres
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

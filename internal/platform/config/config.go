package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"

	minSessionSecretLen = 32
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend  string `env:"STORE_BACKEND" default:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURL      string `env:"MONGO_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" default:"polling"`
	RedisURL      string `env:"REDIS_URL"`

	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionMaxAge   time.Duration `env:"SESSION_MAX_AGE" default:"1h"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	DevLoginEnabled bool          `env:"DEV_LOGIN_ENABLED" default:"false"`

	KeepAliveInterval   time.Duration `env:"KEEPALIVE_INTERVAL" default:"5s"`
	SubscriberBuffer    int           `env:"SUBSCRIBER_BUFFER" default:"100"`
	MaxSubscribers      int           `env:"MAX_SUBSCRIBERS" default:"10000"`
	ResultsCacheTTL     time.Duration `env:"RESULTS_CACHE_TTL" default:"30s"`
	OrphanSweepInterval time.Duration `env:"ORPHAN_SWEEP_INTERVAL" default:"10m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Origins returns the configured CORS origins.
func (c *Config) Origins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case BackendMongo:
		if cfg.MongoURL == "" {
			return errors.New("MONGO_URL is required")
		}
	case BackendMemory:
		if cfg.IsProduction() {
			return errors.New("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, mongo, memory, got %q", cfg.StoreBackend)
	}

	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}

	if cfg.DevLoginEnabled && cfg.IsProduction() {
		return errors.New("DEV_LOGIN_ENABLED must not be set in production")
	}

	if cfg.KeepAliveInterval <= 0 {
		return errors.New("KEEPALIVE_INTERVAL must be positive")
	}
	if cfg.SubscriberBuffer < 1 {
		return errors.New("SUBSCRIBER_BUFFER must be at least 1")
	}
	if cfg.MaxSubscribers < 1 {
		return errors.New("MAX_SUBSCRIBERS must be at least 1")
	}

	return nil
}

// Package config provides environment-based configuration.
//
// Loads from a .env file (godotenv) when present, maps variables onto the
// Config struct via go-simpler/env struct tags, and validates required
// fields.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	// DATABASE_URL empty selects the in-memory snapshot repository
	// (development only).
	DatabaseURL string `env:"DATABASE_URL"`
	// REDIS_URL empty selects the in-memory cooldown gate.
	RedisURL string `env:"REDIS_URL"`

	// CHZZK_API_BASE_URL is overridable for integration tests.
	ChzzkAPIBaseURL string `env:"CHZZK_API_BASE_URL" default:"https://api.chzzk.naver.com"`
	// CHZZK_ACCESS_TOKEN empty selects the logging chat sender.
	ChzzkAccessToken string `env:"CHZZK_ACCESS_TOKEN"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// DebounceWindow is the persistence coalescing interval.
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" default:"750ms"`

	MaxClientsPerChannel int `env:"MAX_CLIENTS_PER_CHANNEL" default:"50"`

	// PointsSignalInterval rate-limits pointsState broadcasts, which would
	// otherwise fire on nearly every chat line.
	PointsSignalInterval time.Duration `env:"POINTS_SIGNAL_INTERVAL" default:"3s"`
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

func validate(cfg *Config) error {
	if cfg.AppEnv == "production" && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if cfg.DebounceWindow < 100*time.Millisecond || cfg.DebounceWindow > 10*time.Second {
		return fmt.Errorf("DEBOUNCE_WINDOW must be between 100ms and 10s")
	}
	if cfg.MaxClientsPerChannel < 1 {
		return fmt.Errorf("MAX_CLIENTS_PER_CHANNEL must be positive")
	}
	return nil
}

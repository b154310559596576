// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port         string `env:"PORT"          envDefault:"5180"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	DBPath       string `env:"DB_PATH"       envDefault:"./data/memory.db"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"dev_secret_change_me"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"24h"`
	SessionSweep  time.Duration `env:"SESSION_SWEEP"  envDefault:"5m"`

	MatchDelay    time.Duration `env:"MATCH_DELAY"    envDefault:"500ms"`
	MismatchDelay time.Duration `env:"MISMATCH_DELAY" envDefault:"1s"`

	ImagesFile string `env:"IMAGES_FILE"`
	DailySalt  string `env:"DAILY_SALT" envDefault:"local_dev_salt"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"memory.events"`

	FeedbackTimeout time.Duration `env:"FEEDBACK_TIMEOUT" envDefault:"2s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SessionSweep <= 0 {
		cfg.SessionSweep = 5 * time.Minute
	}
	return cfg, nil
}

package cliparse

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port         int    `env:"PORT" envDefault:"3318"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	AdminKeySalt string `env:"ADMIN_KEY_SALT"`
	VoterSalt    string `env:"VOTER_SALT"`

	// Shared rate limiting; disabled when RedisURL is empty
	RedisURL           string `env:"REDIS_URL"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Resolution sweeper; disabled when SweepSchedule is empty
	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`
	SweepWorkers  int    `env:"SWEEP_WORKERS" envDefault:"4"`
}

// ParseFlags reads the environment, then lets CLI flags override it.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("outing-pick", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for shared rate limiting")
	fs.StringVar(&cfg.SweepSchedule, "sweep", cfg.SweepSchedule, "Cron spec for the resolution sweeper (empty disables)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", cfg.AdminKeySalt, "Admin key salt (prefer env)")
	fs.StringVar(&cfg.VoterSalt, "voter-salt", cfg.VoterSalt, "Voter fingerprint salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}
	if cfg.VoterSalt == "" {
		return Config{}, errors.New("VOTER_SALT required")
	}

	if cfg.RateLimitPerMinute < 1 || cfg.RateLimitBurst < 1 {
		return Config{}, errors.New("rate limit and burst must be positive")
	}
	if cfg.SweepWorkers < 1 {
		return Config{}, errors.New("SWEEP_WORKERS must be positive")
	}

	return cfg, nil
}

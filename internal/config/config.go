// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

// Package config loads server configuration from a YAML file and CLI
// flags. Precedence, highest first: flags, file, built-in defaults.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the static configuration of a Palisade process. Account and
// audit data live in the database; everything here is tuning.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Lockout   LockoutConfig   `koanf:"lockout"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Reset     ResetConfig     `koanf:"reset"`
	TOTP      TOTPConfig      `koanf:"totp"`
	Audit     AuditConfig     `koanf:"audit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`

	// Level is the minimum level emitted: debug, info, warn, error.
	Level string `koanf:"level"`
}

// DatabaseConfig points at the PostgreSQL instance holding accounts and
// the audit trail.
type DatabaseConfig struct {
	// URL is the connection string. Falls back to the DATABASE_URL
	// environment variable when empty.
	URL string `koanf:"url"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, /healthz and /readyz.
	// Empty disables the server.
	Addr string `koanf:"addr"`
}

// LockoutConfig tunes the per-account exponential lockout.
type LockoutConfig struct {
	// Threshold is the failure count at which lockouts begin.
	Threshold int `koanf:"threshold"`

	// BaseDuration is the lock applied at exactly Threshold failures.
	BaseDuration time.Duration `koanf:"base_duration"`

	// MaxShift caps the number of doublings.
	MaxShift uint `koanf:"max_shift"`
}

// RateLimitConfig tunes the per-origin sliding window.
type RateLimitConfig struct {
	Window      time.Duration `koanf:"window"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// ResetConfig tunes password-reset tokens.
type ResetConfig struct {
	// TokenBytes is token entropy in bytes before hex encoding.
	TokenBytes int `koanf:"token_bytes"`

	// TokenExpiry is how long an issued token stays valid.
	TokenExpiry time.Duration `koanf:"token_expiry"`
}

// TOTPConfig tunes two-factor enrollment.
type TOTPConfig struct {
	// Issuer appears in authenticator apps next to the account name.
	Issuer string `koanf:"issuer"`
}

// AuditConfig tunes the audit recorder.
type AuditConfig struct {
	// WALPath is where denial entries spill when the store is down.
	// Empty uses the XDG state directory.
	WALPath string `koanf:"wal_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Lockout: LockoutConfig{
			Threshold:    5,
			BaseDuration: 15 * time.Minute,
			MaxShift:     16,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			MaxAttempts: 10,
		},
		Reset: ResetConfig{
			TokenBytes:  32,
			TokenExpiry: time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer: "Palisade",
		},
	}
}

// Load builds the effective configuration. path may be empty (no file),
// flags may be nil (no flag overrides). Flag names use dotted keys
// matching the koanf tags, e.g. --logging.level or --database.url.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path != "" {
		// A missing file is fine: defaults plus flags still make a
		// runnable configuration.
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot run
// with. The database URL is not checked here: commands that don't touch
// the database must still load configuration.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "logging.format").
			Errorf("log format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "logging.level").
			Errorf("unknown log level %q", c.Logging.Level)
	}

	if c.Lockout.Threshold <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "lockout.threshold").
			Errorf("lockout threshold must be positive, got %d", c.Lockout.Threshold)
	}
	if c.Lockout.BaseDuration <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "lockout.base_duration").
			Errorf("lockout base duration must be positive, got %s", c.Lockout.BaseDuration)
	}

	if c.RateLimit.Window <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "ratelimit.window").
			Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "ratelimit.max_attempts").
			Errorf("rate limit max attempts must be positive, got %d", c.RateLimit.MaxAttempts)
	}

	if c.Reset.TokenBytes < 16 {
		return oops.Code("CONFIG_INVALID").
			With("field", "reset.token_bytes").
			Errorf("reset token entropy must be at least 16 bytes, got %d", c.Reset.TokenBytes)
	}
	if c.Reset.TokenExpiry <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "reset.token_expiry").
			Errorf("reset token expiry must be positive, got %s", c.Reset.TokenExpiry)
	}

	if c.TOTP.Issuer == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "totp.issuer").
			Errorf("TOTP issuer is required")
	}

	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// yamlDuration renders durations in their human form ("15m") instead of
// nanosecond integers.
type yamlDuration time.Duration

func (d yamlDuration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// yamlConfig mirrors Config with yaml tags matching the koanf keys, so
// a saved file round-trips through Load.
type yamlConfig struct {
	Logging struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"logging"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Lockout struct {
		Threshold    int          `yaml:"threshold"`
		BaseDuration yamlDuration `yaml:"base_duration"`
		MaxShift     uint         `yaml:"max_shift"`
	} `yaml:"lockout"`
	RateLimit struct {
		Window      yamlDuration `yaml:"window"`
		MaxAttempts int          `yaml:"max_attempts"`
	} `yaml:"ratelimit"`
	Reset struct {
		TokenBytes  int          `yaml:"token_bytes"`
		TokenExpiry yamlDuration `yaml:"token_expiry"`
	} `yaml:"reset"`
	TOTP struct {
		Issuer string `yaml:"issuer"`
	} `yaml:"totp"`
	Audit struct {
		WALPath string `yaml:"wal_path"`
	} `yaml:"audit"`
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed. The file is written 0600: it may carry a
// database URL with embedded credentials.
func Save(cfg Config, path string) error {
	var doc yamlConfig
	doc.Logging.Format = cfg.Logging.Format
	doc.Logging.Level = cfg.Logging.Level
	doc.Database.URL = cfg.Database.URL
	doc.Metrics.Addr = cfg.Metrics.Addr
	doc.Lockout.Threshold = cfg.Lockout.Threshold
	doc.Lockout.BaseDuration = yamlDuration(cfg.Lockout.BaseDuration)
	doc.Lockout.MaxShift = cfg.Lockout.MaxShift
	doc.RateLimit.Window = yamlDuration(cfg.RateLimit.Window)
	doc.RateLimit.MaxAttempts = cfg.RateLimit.MaxAttempts
	doc.Reset.TokenBytes = cfg.Reset.TokenBytes
	doc.Reset.TokenExpiry = yamlDuration(cfg.Reset.TokenExpiry)
	doc.TOTP.Issuer = cfg.TOTP.Issuer
	doc.Audit.WALPath = cfg.Audit.WALPath

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return oops.Code("CONFIG_MARSHAL_FAILED").Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	return nil
}

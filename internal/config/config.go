// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/ocms-l10n/internal/lock"
	"github.com/olegiv/ocms-l10n/internal/store"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver      string        `env:"OCMS_L10N_DB_DRIVER" envDefault:"sqlite"`
	DBPath        string        `env:"OCMS_L10N_DB_PATH" envDefault:"./data/ocms-l10n.db"`
	DBBusyTimeout time.Duration `env:"OCMS_L10N_DB_BUSY_TIMEOUT" envDefault:"5s"`
	Env           string        `env:"OCMS_L10N_ENV" envDefault:"development"`
	LogLevel      string        `env:"OCMS_L10N_LOG_LEVEL" envDefault:"info"`

	// Relation schema and site files. Empty means the built-in defaults.
	SchemaPath string `env:"OCMS_L10N_SCHEMA_PATH"`
	SitePath   string `env:"OCMS_L10N_SITE_PATH"`

	// Lock configuration
	RedisURL   string        `env:"OCMS_L10N_REDIS_URL"`                               // Optional Redis URL for locking across processes
	LockPrefix string        `env:"OCMS_L10N_LOCK_PREFIX" envDefault:"ocms-l10n:lock:"` // Redis key prefix
	LockTTL    time.Duration `env:"OCMS_L10N_LOCK_TTL" envDefault:"30s"`               // Expiry of a held lock
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UseRedisLocks returns true if Redis locking is configured.
func (c Config) UseRedisLocks() bool {
	return c.RedisURL != ""
}

// Level returns the slog level of LogLevel.
func (c Config) Level() slog.Level {
	if l, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelInfo
}

// DBConfig returns the database options.
func (c Config) DBConfig() store.DBConfig {
	cfg := store.DefaultDBConfig()
	cfg.Driver = c.DBDriver
	if c.DBBusyTimeout > 0 {
		cfg.BusyTimeout = c.DBBusyTimeout
	}
	return cfg
}

// LockOptions returns the locker options.
func (c Config) LockOptions() lock.Options {
	return lock.Options{
		RedisURL: c.RedisURL,
		Prefix:   c.LockPrefix,
		TTL:      c.LockTTL,
	}
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if !slices.Contains([]string{store.DriverModernc, store.DriverCGO}, cfg.DBDriver) {
		return nil, fmt.Errorf("OCMS_L10N_DB_DRIVER must be %q or %q, got %q",
			store.DriverModernc, store.DriverCGO, cfg.DBDriver)
	}
	if _, ok := logLevels[strings.ToLower(cfg.LogLevel)]; !ok {
		return nil, fmt.Errorf("OCMS_L10N_LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("OCMS_L10N_LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}

	if !cfg.IsDevelopment() && cfg.DBDriver == store.DriverCGO {
		slog.Warn("OCMS_L10N_DB_DRIVER=sqlite3 requires a cgo build")
	}

	return cfg, nil
}

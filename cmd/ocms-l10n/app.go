// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/olegiv/ocms-l10n/internal/config"
	"github.com/olegiv/ocms-l10n/internal/datahandler"
	"github.com/olegiv/ocms-l10n/internal/l10n"
	"github.com/olegiv/ocms-l10n/internal/lock"
	"github.com/olegiv/ocms-l10n/internal/logging"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
	"github.com/olegiv/ocms-l10n/internal/store"
	"github.com/olegiv/ocms-l10n/internal/transfer"
)

// app holds the components shared by all commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	reg    *schema.Registry
	site   *site.Site
	locker lock.Locker

	store       record.Store
	engine      *l10n.Engine
	dataHandler *datahandler.DataHandler
	exporter    *transfer.Exporter
	importer    *transfer.Importer
}

// newApp loads the configuration, opens and migrates the database and
// wires the components. The caller must defer app.Close().
func newApp() (*app, error) {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	reg, err := loadSchema(cfg)
	if err != nil {
		return nil, err
	}
	s := site.Default()
	if cfg.SitePath != "" {
		if s, err = site.LoadFile(cfg.SitePath); err != nil {
			return nil, fmt.Errorf("loading site: %w", err)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	logger.Debug("initializing database", "path", cfg.DBPath, "driver", cfg.DBDriver)
	db, err := store.NewDBWithConfig(cfg.DBPath, cfg.DBConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// Upgrade logger to also write WARN and ERROR logs to sys_log
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})
	logger = slog.New(logging.NewSysLogHandler(textHandler, db))
	slog.SetDefault(logger)

	locker, err := lock.New(cfg.LockOptions(), logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing locker: %w", err)
	}

	st := record.NewSQLStore(db, reg, logger)
	engine := l10n.NewEngine(st, reg, locker, s, logger)

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		reg:         reg,
		site:        s,
		locker:      locker,
		store:       st,
		engine:      engine,
		dataHandler: datahandler.New(st, reg, engine, logger),
		exporter:    transfer.NewExporter(st, reg, s, logger),
		importer:    transfer.NewImporter(st, reg, engine, s, logger),
	}, nil
}

// loadSchema returns the relation schema of cfg.SchemaPath, or the built-in
// one if no path is set.
func loadSchema(cfg *config.Config) (*schema.Registry, error) {
	if cfg.SchemaPath == "" {
		return schema.Default(), nil
	}
	reg, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return reg, nil
}

// seed creates the root page of an empty database.
func (a *app) seed(ctx context.Context) (int64, error) {
	return store.Seed(ctx, a.db)
}

// Close releases the locker and the database.
func (a *app) Close() {
	err := multierr.Combine(a.locker.Close(), a.db.Close())
	if err != nil {
		slog.Error("error closing application", "error", err)
	}
}

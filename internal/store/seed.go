// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Default root page
const (
	RootPageTable = "pages"
	RootPageTitle = "Root"
)

// Seed creates the root page if the pages table is empty and returns its uid.
func Seed(ctx context.Context, db *sql.DB) (int64, error) {
	queries := New(db)

	count, err := queries.CountRecords(ctx, RootPageTable)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	if count > 0 {
		slog.Info("pages already exist, skipping seed")
		return 0, nil
	}

	now := time.Now()
	page, err := queries.CreateRecord(ctx, CreateRecordParams{
		TableName:   RootPageTable,
		Pid:         0,
		Fields:      fmt.Sprintf(`{"title":%q}`, RootPageTitle),
		Pointers:    "{}",
		Collections: "{}",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return 0, fmt.Errorf("creating root page: %w", err)
	}

	slog.Info("created root page", "uid", page.Uid, "title", RootPageTitle)

	return page.Uid, nil
}

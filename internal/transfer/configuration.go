// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// Configuration selects the records of an export. It is stored as a
// tx_l10nmgr_cfg record.
type Configuration struct {
	UID   int64
	Title string
	// PID is the page the export starts at.
	PID int64
	// Depth is the number of page levels below PID. Negative means all.
	Depth int
	// Tables lists the exported tables in export order.
	Tables []string
	// Exclude lists records left out of the export.
	Exclude []model.Key
}

// HasTable returns true if the configuration exports table.
func (c *Configuration) HasTable(table string) bool {
	return slices.Contains(c.Tables, table)
}

// Excludes returns true if k is excluded.
func (c *Configuration) Excludes(k model.Key) bool {
	return slices.Contains(c.Exclude, k)
}

// LoadConfiguration reads the configuration record uid and checks its
// tables against the registry.
func LoadConfiguration(ctx context.Context, st record.Store, reg *schema.Registry, uid int64) (*Configuration, error) {
	rec, err := st.Get(ctx, schema.TableL10nCfg, uid)
	if err != nil {
		return nil, fmt.Errorf("loading configuration %d: %w", uid, err)
	}
	cfg, err := configurationFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("configuration %d: %w", uid, err)
	}
	for _, table := range cfg.Tables {
		if !reg.Has(table) {
			return nil, fmt.Errorf("configuration %d: %w: %q", uid, schema.ErrUnknownTable, table)
		}
	}
	return cfg, nil
}

func configurationFromRecord(rec *model.Record) (*Configuration, error) {
	cfg := &Configuration{
		UID:   rec.UID,
		Title: rec.Field("title"),
		PID:   rec.PID,
	}

	if raw := strings.TrimSpace(rec.Field("depth")); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: depth %q", record.ErrValidation, raw)
		}
		cfg.Depth = depth
	}

	for _, table := range splitList(rec.Field("tablelist")) {
		if !slices.Contains(cfg.Tables, table) {
			cfg.Tables = append(cfg.Tables, table)
		}
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("%w: empty tablelist", record.ErrValidation)
	}

	for _, item := range splitList(rec.Field("exclude")) {
		table, rawUID, ok := strings.Cut(item, ":")
		uid, err := strconv.ParseInt(rawUID, 10, 64)
		if !ok || err != nil {
			return nil, fmt.Errorf("%w: exclude entry %q", record.ErrValidation, item)
		}
		cfg.Exclude = append(cfg.Exclude, model.Key{Table: table, UID: uid})
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

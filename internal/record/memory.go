// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package record

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// MemoryStore keeps records in process memory. Transactions hold the store
// lock for their whole duration and restore a snapshot on failure.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(reg *schema.Registry, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		data: &memData{
			reg:     reg,
			logger:  logger,
			records: make(map[model.Key]*model.Record),
		},
	}
}

// Insert implements Store.
func (m *MemoryStore) Insert(ctx context.Context, rec *model.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Insert(ctx, rec)
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, table string, uid int64) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Get(ctx, table, uid)
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, table string, uid int64, patch model.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Update(ctx, table, uid, patch)
}

// FindLocalization implements Store.
func (m *MemoryStore) FindLocalization(ctx context.Context, table string, uid, lang int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindLocalization(ctx, table, uid, lang)
}

// CreateLocalizedCopy implements Store.
func (m *MemoryStore) CreateLocalizedCopy(ctx context.Context, table string, sourceUID, lang int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateLocalizedCopy(ctx, table, sourceUID, lang)
}

// ListByPID implements Store.
func (m *MemoryStore) ListByPID(ctx context.Context, table string, pid, lang int64) ([]*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListByPID(ctx, table, pid, lang)
}

// InTx implements Store.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.snapshot()
	if err := fn(m.data); err != nil {
		m.data.restore(snapshot)
		return err
	}
	return nil
}

// Len returns the number of stored records in all tables and languages.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.records)
}

// memData is the unlocked state of a MemoryStore. It doubles as the Store
// handed to transaction callbacks, which already hold the lock.
type memData struct {
	reg     *schema.Registry
	logger  *slog.Logger
	nextUID int64
	records map[model.Key]*model.Record
}

type memSnapshot struct {
	nextUID int64
	records map[model.Key]*model.Record
}

func (d *memData) snapshot() memSnapshot {
	recs := make(map[model.Key]*model.Record, len(d.records))
	for k, r := range d.records {
		recs[k] = r.Clone()
	}
	return memSnapshot{nextUID: d.nextUID, records: recs}
}

func (d *memData) restore(s memSnapshot) {
	d.nextUID = s.nextUID
	d.records = s.records
}

func (d *memData) exists(_ context.Context, table string, uid int64) (bool, error) {
	_, ok := d.records[model.Key{Table: table, UID: uid}]
	return ok, nil
}

func (d *memData) Insert(ctx context.Context, rec *model.Record) (int64, error) {
	if err := validate(ctx, d.reg, rec, d.exists); err != nil {
		return 0, err
	}
	if rec.LanguageID > model.DefaultLanguage {
		uids := d.localizations(rec.Table, rec.L10nParent, rec.LanguageID)
		if len(uids) > 0 {
			return 0, fmt.Errorf("%w: %s:%d already has a translation into language %d",
				ErrConsistency, rec.Table, rec.L10nParent, rec.LanguageID)
		}
	}

	d.nextUID++
	now := time.Now()
	stored := rec.Clone()
	stored.UID = d.nextUID
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	d.records[stored.Key()] = stored

	d.logger.Debug("record inserted", "table", rec.Table, "uid", stored.UID, "language", rec.LanguageID)
	return stored.UID, nil
}

func (d *memData) get(table string, uid int64) (*model.Record, error) {
	if !d.reg.Has(table) {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	rec, ok := d.records[model.Key{Table: table, UID: uid}]
	if !ok {
		return nil, notFound(table, uid)
	}
	return rec, nil
}

func (d *memData) Get(_ context.Context, table string, uid int64) (*model.Record, error) {
	rec, err := d.get(table, uid)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (d *memData) Update(ctx context.Context, table string, uid int64, patch model.Patch) error {
	cur, err := d.get(table, uid)
	if err != nil {
		return err
	}
	next := cur.Clone()
	patch.ApplyTo(next)
	if err := validate(ctx, d.reg, next, d.exists); err != nil {
		return err
	}
	next.Version++
	next.UpdatedAt = time.Now()
	d.records[next.Key()] = next
	return nil
}

func (d *memData) localizations(table string, uid, lang int64) []int64 {
	var uids []int64
	for _, r := range d.records {
		if r.Table == table && r.L10nParent == uid && r.LanguageID == lang {
			uids = append(uids, r.UID)
		}
	}
	slices.Sort(uids)
	return uids
}

func (d *memData) FindLocalization(_ context.Context, table string, uid, lang int64) (int64, bool, error) {
	if !d.reg.Has(table) {
		return 0, false, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	return single(table, uid, lang, d.localizations(table, uid, lang))
}

func (d *memData) CreateLocalizedCopy(ctx context.Context, table string, sourceUID, lang int64) (int64, bool, error) {
	if locUID, found, err := d.FindLocalization(ctx, table, sourceUID, lang); err != nil || found {
		return locUID, false, err
	}
	src, err := d.get(table, sourceUID)
	if err != nil {
		return 0, false, err
	}
	c, err := localizedCopy(src, lang)
	if err != nil {
		return 0, false, err
	}
	uid, err := d.Insert(ctx, c)
	if err != nil {
		return 0, false, err
	}
	return uid, true, nil
}

func (d *memData) ListByPID(_ context.Context, table string, pid, lang int64) ([]*model.Record, error) {
	if !d.reg.Has(table) {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	var recs []*model.Record
	for _, k := range slices.SortedFunc(maps.Keys(d.records), func(a, b model.Key) int {
		return cmp.Compare(a.UID, b.UID)
	}) {
		r := d.records[k]
		if r.Table == table && r.PID == pid && r.LanguageID == lang {
			recs = append(recs, r.Clone())
		}
	}
	return recs, nil
}

func (d *memData) InTx(_ context.Context, fn func(tx Store) error) error {
	return fn(d)
}

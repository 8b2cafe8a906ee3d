// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/store"
)

// SQLStore keeps records in the SQLite records table.
type SQLStore struct {
	db      *sql.DB
	queries *store.Queries
	reg     *schema.Registry
	logger  *slog.Logger
	inTx    bool
}

// NewSQLStore creates a store backed by db. The database must be migrated.
func NewSQLStore(db *sql.DB, reg *schema.Registry, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		queries: store.New(db),
		reg:     reg,
		logger:  logger,
	}
}

// Insert implements Store.
func (s *SQLStore) Insert(ctx context.Context, rec *model.Record) (int64, error) {
	if err := validate(ctx, s.reg, rec, s.exists); err != nil {
		return 0, err
	}

	params, err := createParams(rec)
	if err != nil {
		return 0, err
	}
	row, err := s.queries.CreateRecord(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s:%d already has a translation into language %d",
				ErrConsistency, rec.Table, rec.L10nParent, rec.LanguageID)
		}
		return 0, fmt.Errorf("inserting %s record: %w", rec.Table, err)
	}

	s.logger.Debug("record inserted", "table", rec.Table, "uid", row.Uid, "language", rec.LanguageID)
	return row.Uid, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, table string, uid int64) (*model.Record, error) {
	if !s.reg.Has(table) {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	row, err := s.queries.GetRecord(ctx, store.GetRecordParams{TableName: table, Uid: uid})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(table, uid)
		}
		return nil, fmt.Errorf("loading %s:%d: %w", table, uid, err)
	}
	return fromRow(row)
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, table string, uid int64, patch model.Patch) error {
	rec, err := s.Get(ctx, table, uid)
	if err != nil {
		return err
	}
	patch.ApplyTo(rec)
	if err := validate(ctx, s.reg, rec, s.exists); err != nil {
		return err
	}

	fields, pointers, collections, err := encode(rec)
	if err != nil {
		return err
	}
	n, err := s.queries.UpdateRecord(ctx, store.UpdateRecordParams{
		Pid:         rec.PID,
		Fields:      fields,
		Pointers:    pointers,
		Collections: collections,
		UpdatedAt:   time.Now(),
		TableName:   table,
		Uid:         uid,
	})
	if err != nil {
		return fmt.Errorf("updating %s:%d: %w", table, uid, err)
	}
	if n == 0 {
		return notFound(table, uid)
	}
	return nil
}

// FindLocalization implements Store.
func (s *SQLStore) FindLocalization(ctx context.Context, table string, uid, lang int64) (int64, bool, error) {
	if !s.reg.Has(table) {
		return 0, false, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	uids, err := s.queries.ListLocalizations(ctx, store.ListLocalizationsParams{
		TableName:      table,
		L10nParent:     uid,
		SysLanguageUid: lang,
	})
	if err != nil {
		return 0, false, fmt.Errorf("finding localization of %s:%d: %w", table, uid, err)
	}
	return single(table, uid, lang, uids)
}

// CreateLocalizedCopy implements Store.
func (s *SQLStore) CreateLocalizedCopy(ctx context.Context, table string, sourceUID, lang int64) (int64, bool, error) {
	if locUID, found, err := s.FindLocalization(ctx, table, sourceUID, lang); err != nil || found {
		return locUID, false, err
	}

	src, err := s.Get(ctx, table, sourceUID)
	if err != nil {
		return 0, false, err
	}
	c, err := localizedCopy(src, lang)
	if err != nil {
		return 0, false, err
	}

	uid, err := s.Insert(ctx, c)
	if errors.Is(err, ErrConsistency) {
		// Lost a race against another writer; the unique index kept one copy.
		locUID, found, ferr := s.FindLocalization(ctx, table, sourceUID, lang)
		if ferr != nil {
			return 0, false, ferr
		}
		if found {
			return locUID, false, nil
		}
	}
	if err != nil {
		return 0, false, err
	}
	return uid, true, nil
}

// ListByPID implements Store.
func (s *SQLStore) ListByPID(ctx context.Context, table string, pid, lang int64) ([]*model.Record, error) {
	if !s.reg.Has(table) {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}
	rows, err := s.queries.ListRecordsByPid(ctx, store.ListRecordsByPidParams{
		TableName:      table,
		Pid:            pid,
		SysLanguageUid: lang,
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s on page %d: %w", table, pid, err)
	}

	recs := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// InTx implements Store.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &SQLStore{
		db:      s.db,
		queries: s.queries.WithTx(tx),
		reg:     s.reg,
		logger:  s.logger,
		inTx:    true,
	}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, table string, uid int64) (bool, error) {
	n, err := s.queries.RecordExists(ctx, store.GetRecordParams{TableName: table, Uid: uid})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func single(table string, uid, lang int64, uids []int64) (int64, bool, error) {
	switch len(uids) {
	case 0:
		return 0, false, nil
	case 1:
		return uids[0], true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s:%d has %d translations into language %d",
			ErrConsistency, table, uid, len(uids), lang)
	}
}

// isUniqueViolation matches the constraint error of both SQLite drivers.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func encode(rec *model.Record) (fields, pointers, collections string, err error) {
	f, err := json.Marshal(nonNil(rec.Fields))
	if err != nil {
		return "", "", "", fmt.Errorf("encoding fields: %w", err)
	}
	p, err := json.Marshal(nonNil(rec.Pointers))
	if err != nil {
		return "", "", "", fmt.Errorf("encoding pointers: %w", err)
	}
	c, err := json.Marshal(nonNil(rec.Collections))
	if err != nil {
		return "", "", "", fmt.Errorf("encoding collections: %w", err)
	}
	return string(f), string(p), string(c), nil
}

func nonNil[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func createParams(rec *model.Record) (store.CreateRecordParams, error) {
	fields, pointers, collections, err := encode(rec)
	if err != nil {
		return store.CreateRecordParams{}, err
	}
	now := time.Now()
	return store.CreateRecordParams{
		TableName:      rec.Table,
		Pid:            rec.PID,
		SysLanguageUid: rec.LanguageID,
		L10nParent:     rec.L10nParent,
		Fields:         fields,
		Pointers:       pointers,
		Collections:    collections,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func fromRow(row store.Record) (*model.Record, error) {
	rec := &model.Record{
		Table:       row.TableName,
		UID:         row.Uid,
		PID:         row.Pid,
		LanguageID:  row.SysLanguageUid,
		L10nParent:  row.L10nParent,
		Version:     row.Version,
		Fields:      map[string]string{},
		Pointers:    map[string]int64{},
		Collections: map[string][]int64{},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s:%d: %w", row.TableName, row.Uid, err)
	}
	if err := json.Unmarshal([]byte(row.Pointers), &rec.Pointers); err != nil {
		return nil, fmt.Errorf("decoding pointers of %s:%d: %w", row.TableName, row.Uid, err)
	}
	if err := json.Unmarshal([]byte(row.Collections), &rec.Collections); err != nil {
		return nil, fmt.Errorf("decoding collections of %s:%d: %w", row.TableName, row.Uid, err)
	}
	return rec, nil
}

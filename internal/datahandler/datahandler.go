// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package datahandler processes batches of record writes (the data map) and
// localize commands (the command map). Placeholder ids of new records are
// resolved across the batch, inverse relation fields are kept in sync and
// errors are collected instead of aborting the batch.
package datahandler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/olegiv/ocms-l10n/internal/l10n"
	"github.com/olegiv/ocms-l10n/internal/logging"
	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// Fields that only the localization engine writes.
var managedFields = []string{"uid", "sys_language_uid", "l10n_parent"}

// DataHandler applies data maps and command maps to a record store.
type DataHandler struct {
	store  record.Store
	reg    *schema.Registry
	engine *l10n.Engine
	logger *slog.Logger
}

// New creates a data handler.
func New(st record.Store, reg *schema.Registry, engine *l10n.Engine, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		store:  st,
		reg:    reg,
		engine: engine,
		logger: logging.WithCategory(logger, logging.CategoryDataHandler),
	}
}

// entry is one data map record while the batch is processed.
type entry struct {
	table  string
	key    string
	uid    int64
	insert bool
	failed bool

	pidPlaceholder string
	relations      map[string]any
}

func (e *entry) String() string {
	return e.table + ":" + e.key
}

// Process inserts and updates the records of data, then runs the commands
// of cmds. Every error is collected in the result; writes that succeeded
// before an error are kept.
func (h *DataHandler) Process(ctx context.Context, data DataMap, cmds CommandMap) *Result {
	res := newResult()
	subst := make(map[string]model.Key)

	entries := h.entries(data, res)

	for _, e := range entries {
		if err := h.writeScalars(ctx, e, data[e.table][e.key], subst, res); err != nil {
			e.failed = true
			h.fail(res, e.String(), err)
		}
	}

	for _, e := range entries {
		if e.failed {
			continue
		}
		if err := h.writeRelations(ctx, e, subst); err != nil {
			h.fail(res, e.String(), err)
		}
	}

	h.runCommands(ctx, cmds, res)

	if res.Failed() {
		h.logger.Warn("batch finished with errors", "errors", len(res.Errors()),
			"inserted", len(res.Inserted), "updated", len(res.Updated))
	} else {
		h.logger.Debug("batch finished", "inserted", len(res.Inserted),
			"updated", len(res.Updated), "localized", len(res.Localized))
	}
	return res
}

func (h *DataHandler) fail(res *Result, where string, err error) {
	err = fmt.Errorf("%s: %w", where, err)
	h.logger.Warn("batch entry failed", "error", err)
	res.addError(err)
}

// entries orders the data map by registry table order, then by key.
func (h *DataHandler) entries(data DataMap, res *Result) []*entry {
	var unknown []string
	for table := range data {
		if !h.reg.Has(table) {
			unknown = append(unknown, table)
		}
	}
	slices.Sort(unknown)
	for _, table := range unknown {
		res.addError(fmt.Errorf("%w: %q", schema.ErrUnknownTable, table))
	}

	var entries []*entry
	for _, table := range h.reg.Tables() {
		rows, ok := data[table]
		if !ok {
			continue
		}
		keys := make([]string, 0, len(rows))
		for key := range rows {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			entries = append(entries, &entry{
				table:     table,
				key:       key,
				insert:    IsPlaceholder(key),
				relations: make(map[string]any),
			})
		}
	}
	return entries
}

// writeScalars inserts a new record or updates the scalar fields of an
// existing one. Relation values are kept on the entry for the second pass.
func (h *DataHandler) writeScalars(ctx context.Context, e *entry, values Values, subst map[string]model.Key, res *Result) error {
	tbl, err := h.reg.Table(e.table)
	if err != nil {
		return err
	}

	fields := make(map[string]string)
	var pid *int64
	for name, v := range values {
		switch {
		case slices.Contains(managedFields, name):
			return fmt.Errorf("%w: field %q cannot be written", record.ErrValidation, name)
		case name == "pid":
			uid, placeholder, err := intValue(v)
			if err != nil {
				return fmt.Errorf("%w: pid: %v", record.ErrValidation, err)
			}
			if placeholder != "" {
				if k, ok := subst[placeholder]; ok && k.Table == schema.TablePages {
					uid = k.UID
				} else {
					e.pidPlaceholder = placeholder
				}
			}
			pid = &uid
		default:
			if _, ok := tbl.Relation(name); ok {
				e.relations[name] = v
				continue
			}
			if _, ok := tbl.Field(name); !ok {
				return fmt.Errorf("%w: %s has no field %q", record.ErrValidation, e.table, name)
			}
			s, err := scalar(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", record.ErrValidation, name, err)
			}
			fields[name] = s
		}
	}

	if e.insert {
		rec := &model.Record{Table: e.table, Fields: fields}
		if pid != nil {
			if e.pidPlaceholder == "" {
				if err := h.checkPID(ctx, e.table, 0, *pid); err != nil {
					return err
				}
			}
			rec.PID = *pid
		}
		uid, err := h.store.Insert(ctx, rec)
		if err != nil {
			return err
		}
		e.uid = uid
		subst[e.key] = model.Key{Table: e.table, UID: uid}
		res.Substitutions[e.key] = uid
		res.Inserted = append(res.Inserted, model.Key{Table: e.table, UID: uid})
		return nil
	}

	uid, err := strconv.ParseInt(e.key, 10, 64)
	if err != nil || uid <= 0 {
		return fmt.Errorf("%w: key %q is neither a uid nor a placeholder", record.ErrValidation, e.key)
	}
	e.uid = uid
	if pid != nil && e.pidPlaceholder == "" {
		if err := h.checkPID(ctx, e.table, uid, *pid); err != nil {
			return err
		}
	}
	patch := model.Patch{PID: pid, Fields: fields}
	if patch.IsEmpty() {
		if _, err := h.store.Get(ctx, e.table, uid); err != nil {
			return err
		}
	} else if err := h.store.Update(ctx, e.table, uid, patch); err != nil {
		return err
	}
	res.Updated = append(res.Updated, model.Key{Table: e.table, UID: uid})
	return nil
}

// resolve turns the references of a relation value into uids of table.
func resolve(refs []ref, table string, subst map[string]model.Key) ([]int64, error) {
	uids := make([]int64, 0, len(refs))
	for _, r := range refs {
		if r.placeholder == "" {
			uids = append(uids, r.uid)
			continue
		}
		k, ok := subst[r.placeholder]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDanglingReference, r.placeholder)
		}
		if k.Table != table {
			return nil, fmt.Errorf("%w: %s is a %s record, expected %s", record.ErrValidation, r.placeholder, k.Table, table)
		}
		uids = append(uids, k.UID)
	}
	return uids, nil
}

// writeRelations resolves the pid placeholder and relation values of an
// entry and writes them together with their inverse fields.
func (h *DataHandler) writeRelations(ctx context.Context, e *entry, subst map[string]model.Key) error {
	if e.pidPlaceholder != "" {
		uids, err := resolve([]ref{{placeholder: e.pidPlaceholder}}, schema.TablePages, subst)
		if err != nil {
			return fmt.Errorf("pid: %w", err)
		}
		if err := h.checkPID(ctx, e.table, e.uid, uids[0]); err != nil {
			return err
		}
		if err := h.store.Update(ctx, e.table, e.uid, model.Patch{PID: &uids[0]}); err != nil {
			return err
		}
	}

	rels, err := h.reg.RelationsOf(e.table)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		v, ok := e.relations[rel.Field]
		if !ok {
			continue
		}
		refs, err := parseRefs(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", record.ErrValidation, rel.Field, err)
		}
		uids, err := resolve(refs, rel.TargetTable, subst)
		if err != nil {
			return fmt.Errorf("%s: %w", rel.Field, err)
		}

		err = h.store.InTx(ctx, func(tx record.Store) error {
			if rel.Kind == schema.ParentPointer {
				if len(uids) > 1 {
					return fmt.Errorf("%w: %s takes a single uid, got %d", record.ErrValidation, rel.Field, len(uids))
				}
				var target int64
				if len(uids) == 1 {
					target = uids[0]
				}
				return h.setPointer(ctx, tx, e.table, e.uid, rel, target)
			}
			return h.setCollection(ctx, tx, e.table, e.uid, rel, uids)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", rel.Field, err)
		}
	}
	return nil
}

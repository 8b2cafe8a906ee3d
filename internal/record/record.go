// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package record implements the record store: versioned records addressed
// by table and uid, with referential validation of relation fields and
// idempotent creation of localized copies.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// Store errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrValidation  = errors.New("validation failed")
	ErrConsistency = errors.New("inconsistent localization")
)

// Store is the record store used by the data handler, the localization
// engine and the transfer package.
type Store interface {
	// Insert allocates a uid for rec and stores it. Relation fields must
	// reference existing records.
	Insert(ctx context.Context, rec *model.Record) (int64, error)
	Get(ctx context.Context, table string, uid int64) (*model.Record, error)
	// Update applies a partial update and bumps the record version.
	Update(ctx context.Context, table string, uid int64, patch model.Patch) error
	// FindLocalization returns the uid of the translation of table:uid into
	// lang. found is false if there is none.
	FindLocalization(ctx context.Context, table string, uid, lang int64) (locUID int64, found bool, err error)
	// CreateLocalizedCopy duplicates a default language record into lang.
	// If a translation exists its uid is returned with created set to false.
	// Relation fields of a new copy still reference the original targets.
	CreateLocalizedCopy(ctx context.Context, table string, sourceUID, lang int64) (locUID int64, created bool, err error)
	// ListByPID returns the records of a table stored on a page in one
	// language, ordered by uid.
	ListByPID(ctx context.Context, table string, pid, lang int64) ([]*model.Record, error)
	// InTx runs fn in a transaction. Writes made through tx are rolled back
	// if fn returns an error. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// existsFunc reports whether table:uid exists.
type existsFunc func(ctx context.Context, table string, uid int64) (bool, error)

// validate checks rec against the registry: the table must be registered,
// every relation value must name a declared field and an existing record.
func validate(ctx context.Context, reg *schema.Registry, rec *model.Record, exists existsFunc) error {
	tbl, err := reg.Table(rec.Table)
	if err != nil {
		return err
	}

	if rec.LanguageID < 0 {
		return fmt.Errorf("%w: negative language %d", ErrValidation, rec.LanguageID)
	}
	if rec.LanguageID == model.DefaultLanguage && rec.L10nParent != 0 {
		return fmt.Errorf("%w: default language record with l10n_parent %d", ErrValidation, rec.L10nParent)
	}
	if rec.LanguageID > model.DefaultLanguage {
		if err := checkRef(ctx, exists, rec.Table, "l10n_parent", rec.Table, rec.L10nParent); err != nil {
			return err
		}
	}

	for field, target := range rec.Pointers {
		rel, ok := tbl.Relation(field)
		if !ok || rel.Kind != schema.ParentPointer {
			return fmt.Errorf("%w: %s has no pointer field %q", ErrValidation, rec.Table, field)
		}
		if target == 0 {
			continue
		}
		if err := checkRef(ctx, exists, rec.Table, field, rel.TargetTable, target); err != nil {
			return err
		}
	}

	for field, uids := range rec.Collections {
		rel, ok := tbl.Relation(field)
		if !ok || rel.Kind != schema.ChildCollection {
			return fmt.Errorf("%w: %s has no collection field %q", ErrValidation, rec.Table, field)
		}
		if rel.MaxItems > 0 && len(uids) > rel.MaxItems {
			return fmt.Errorf("%w: %s.%s holds %d items, max %d", ErrValidation, rec.Table, field, len(uids), rel.MaxItems)
		}
		seen := make(map[int64]bool, len(uids))
		for _, uid := range uids {
			if seen[uid] {
				return fmt.Errorf("%w: %s.%s lists %d twice", ErrValidation, rec.Table, field, uid)
			}
			seen[uid] = true
			if err := checkRef(ctx, exists, rec.Table, field, rel.TargetTable, uid); err != nil {
				return err
			}
		}
	}

	for name, value := range rec.Fields {
		f, ok := tbl.Field(name)
		if ok && f.Max > 0 && len([]rune(value)) > f.Max {
			return fmt.Errorf("%w: %s.%s exceeds %d characters", ErrValidation, rec.Table, name, f.Max)
		}
	}
	return nil
}

func checkRef(ctx context.Context, exists existsFunc, table, field, target string, uid int64) error {
	if uid <= 0 {
		return fmt.Errorf("%w: %s.%s references invalid uid %d", ErrValidation, table, field, uid)
	}
	ok, err := exists(ctx, target, uid)
	if err != nil {
		return fmt.Errorf("checking %s:%d: %w", target, uid, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s references missing %s:%d", ErrValidation, table, field, target, uid)
	}
	return nil
}

// localizedCopy builds the unsaved translation of src into lang.
func localizedCopy(src *model.Record, lang int64) (*model.Record, error) {
	if lang <= model.DefaultLanguage {
		return nil, fmt.Errorf("%w: target language must be > 0, got %d", ErrValidation, lang)
	}
	if !src.IsDefaultLanguage() {
		return nil, fmt.Errorf("%w: %s is a translation (language %d)", ErrValidation, src.Key(), src.LanguageID)
	}
	c := src.Clone()
	c.UID = 0
	c.Version = 0
	c.LanguageID = lang
	c.L10nParent = src.UID
	return c, nil
}

func notFound(table string, uid int64) error {
	return fmt.Errorf("%w: %s:%d", ErrNotFound, table, uid)
}

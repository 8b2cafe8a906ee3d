// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package l10n propagates localization requests through the child
// collections of a record and rewires the relation fields of the copies.
package l10n

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/olegiv/ocms-l10n/internal/lock"
	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
)

// maxAttempts bounds the retries when a subtree grows between planning
// and locking.
const maxAttempts = 5

// Engine localizes records and their subtrees.
type Engine struct {
	store  record.Store
	reg    *schema.Registry
	locker lock.Locker
	site   *site.Site
	logger *slog.Logger
}

// NewEngine creates an engine. A nil locker means in-process locking; a nil
// site accepts every language id above zero.
func NewEngine(st record.Store, reg *schema.Registry, locker lock.Locker, s *site.Site, logger *slog.Logger) *Engine {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &Engine{
		store:  st,
		reg:    reg,
		locker: locker,
		site:   s,
		logger: logger,
	}
}

// Outcome describes one Localize call.
type Outcome struct {
	// UID is the translation of the requested record.
	UID int64
	// Translations maps every record of the subtree to its translation.
	Translations map[model.Key]int64
	// Created lists the records copied by this call, in pre-order.
	Created []model.Key
	// Updated lists translations whose relation fields were rewritten.
	Updated []model.Key
}

// Localize returns the translation of table:uid into lang, creating it and
// the translations of its whole subtree if needed.
func (e *Engine) Localize(ctx context.Context, table string, uid, lang int64) (int64, error) {
	out, err := e.LocalizeDetailed(ctx, table, uid, lang)
	if err != nil {
		return 0, err
	}
	return out.UID, nil
}

// LocalizeDetailed is like Localize but reports what was created.
func (e *Engine) LocalizeDetailed(ctx context.Context, table string, uid, lang int64) (*Outcome, error) {
	if err := e.checkLanguage(lang); err != nil {
		return nil, err
	}
	if !e.reg.Has(table) {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := e.attempt(ctx, table, uid, lang)
		if errors.Is(err, errPlanChanged) {
			e.logger.Debug("subtree changed while locking, retrying",
				"table", table, "uid", uid, "language", lang, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("localizing %s:%d into %d: %w", table, uid, lang, err)
		}

		if len(out.Created) > 0 || len(out.Updated) > 0 {
			e.logger.Info("record localized",
				"table", table, "uid", uid, "language", lang, "localization", out.UID,
				"created", len(out.Created), "updated", len(out.Updated))
		}
		return out, nil
	}
	return nil, fmt.Errorf("localizing %s:%d into %d: %w after %d attempts", table, uid, lang, errPlanChanged, maxAttempts)
}

func (e *Engine) checkLanguage(lang int64) error {
	if lang <= model.DefaultLanguage {
		return fmt.Errorf("%w: target language must be > 0, got %d", record.ErrValidation, lang)
	}
	if e.site != nil && !e.site.HasLanguage(lang) {
		return fmt.Errorf("%w: %d", site.ErrUnknownLanguage, lang)
	}
	return nil
}

// attempt plans outside the transaction, locks the planned keys, then plans
// again inside the transaction and applies the plan if it is still covered
// by the held locks.
func (e *Engine) attempt(ctx context.Context, table string, uid, lang int64) (*Outcome, error) {
	p, err := buildPlan(ctx, e.store, e.reg, table, uid, lang)
	if err != nil {
		return nil, err
	}

	held := p.lockKeys()
	unlock, err := e.locker.Lock(ctx, held...)
	if err != nil {
		return nil, fmt.Errorf("locking subtree: %w", err)
	}
	defer unlock()

	var out *Outcome
	err = e.store.InTx(ctx, func(tx record.Store) error {
		p, err := buildPlan(ctx, tx, e.reg, table, uid, lang)
		if err != nil {
			return err
		}
		if !p.coveredBy(held) {
			return errPlanChanged
		}
		out, err = e.apply(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// apply creates the missing copies, then rewrites collections and pointers.
func (e *Engine) apply(ctx context.Context, tx record.Store, p *plan) (*Outcome, error) {
	out := &Outcome{Translations: make(map[model.Key]int64, len(p.nodes))}

	for _, n := range p.nodes {
		key := n.src.Key()
		locUID, created, err := tx.CreateLocalizedCopy(ctx, key.Table, key.UID, p.lang)
		if err != nil {
			return nil, err
		}
		out.Translations[key] = locUID
		if created {
			out.Created = append(out.Created, key)
		}
	}
	out.UID = out.Translations[p.nodes[0].src.Key()]

	for _, n := range p.nodes {
		updated, err := e.rewire(ctx, tx, n, p.lang, out.Translations)
		if err != nil {
			return nil, err
		}
		if updated {
			out.Updated = append(out.Updated, n.src.Key())
		}
	}
	return out, nil
}

// rewire points the relation fields of the translation of n at the
// translations of their targets.
func (e *Engine) rewire(ctx context.Context, tx record.Store, n *node, lang int64, translations map[model.Key]int64) (bool, error) {
	src := n.src
	locUID := translations[src.Key()]
	loc, err := tx.Get(ctx, src.Table, locUID)
	if err != nil {
		return false, err
	}
	rels, err := e.reg.RelationsOf(src.Table)
	if err != nil {
		return false, err
	}

	patch := model.Patch{}
	var parents []schema.RelationField
	for _, rel := range rels {
		switch rel.Kind {
		case schema.ChildCollection:
			want := make([]int64, 0, len(src.Collection(rel.Field)))
			for _, child := range src.Collection(rel.Field) {
				want = append(want, translations[model.Key{Table: rel.TargetTable, UID: child}])
			}
			want = appendForeign(want, loc.Collection(rel.Field), src.Collection(rel.Field))
			if !slices.Equal(want, loc.Collection(rel.Field)) {
				if patch.Collections == nil {
					patch.Collections = map[string][]int64{}
				}
				patch.Collections[rel.Field] = want
			}

		case schema.ParentPointer:
			target := src.Pointer(rel.Field)
			if target == 0 {
				continue
			}
			want, err := e.translationOf(ctx, tx, model.Key{Table: rel.TargetTable, UID: target}, lang, translations)
			if err != nil {
				return false, err
			}
			if want == 0 {
				// No translation of the parent: keep the original target.
				want = target
			} else {
				parents = append(parents, rel)
			}
			if want != loc.Pointer(rel.Field) {
				if patch.Pointers == nil {
					patch.Pointers = map[string]int64{}
				}
				patch.Pointers[rel.Field] = want
			}
		}
	}

	if !patch.IsEmpty() {
		if err := tx.Update(ctx, src.Table, locUID, patch); err != nil {
			return false, err
		}
	}

	for _, rel := range parents {
		if err := e.syncInverse(ctx, tx, src, rel, lang, translations); err != nil {
			return false, err
		}
	}
	return !patch.IsEmpty(), nil
}

// translationOf returns the translation of k from this pass or an earlier
// one, or 0 if there is none.
func (e *Engine) translationOf(ctx context.Context, tx record.Store, k model.Key, lang int64, translations map[model.Key]int64) (int64, error) {
	if uid, ok := translations[k]; ok {
		return uid, nil
	}
	uid, found, err := tx.FindLocalization(ctx, k.Table, k.UID, lang)
	if err != nil || !found {
		return 0, err
	}
	return uid, nil
}

// syncInverse makes the translated parent of src list the translation of
// src in its inverse collection, at the position the original holds.
// Parents inside the plan are already rewritten by their own node.
func (e *Engine) syncInverse(ctx context.Context, tx record.Store, src *model.Record, rel schema.RelationField, lang int64, translations map[model.Key]int64) error {
	parentKey := model.Key{Table: rel.TargetTable, UID: src.Pointer(rel.Field)}
	if _, inPlan := translations[parentKey]; inPlan || rel.InverseField == "" {
		return nil
	}

	parent, err := tx.Get(ctx, parentKey.Table, parentKey.UID)
	if err != nil {
		return err
	}
	parentLocUID, err := e.translationOf(ctx, tx, parentKey, lang, translations)
	if err != nil {
		return err
	}
	parentLoc, err := tx.Get(ctx, parentKey.Table, parentLocUID)
	if err != nil {
		return err
	}

	srcColl := parent.Collection(rel.InverseField)
	if !slices.Contains(srcColl, src.UID) {
		return nil
	}

	want := make([]int64, 0, len(srcColl))
	for _, child := range srcColl {
		childLoc, err := e.translationOf(ctx, tx, model.Key{Table: src.Table, UID: child}, lang, translations)
		if err != nil {
			return err
		}
		if childLoc != 0 {
			want = append(want, childLoc)
		}
	}
	want = appendForeign(want, parentLoc.Collection(rel.InverseField), srcColl)

	if slices.Equal(want, parentLoc.Collection(rel.InverseField)) {
		return nil
	}
	e.logger.Debug("rewriting inverse collection of translated parent",
		"table", parentKey.Table, "uid", parentLocUID, "field", rel.InverseField)
	return tx.Update(ctx, parentKey.Table, parentLocUID, model.Patch{
		Collections: map[string][]int64{rel.InverseField: want},
	})
}

// appendForeign appends the entries of current that belong only to the
// translation: neither an original listed in src nor already in want.
func appendForeign(want, current, src []int64) []int64 {
	for _, uid := range current {
		if slices.Contains(src, uid) || slices.Contains(want, uid) {
			continue
		}
		want = append(want, uid)
	}
	return want
}

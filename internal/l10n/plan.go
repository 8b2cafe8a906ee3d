// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package l10n

import (
	"context"
	"fmt"
	"slices"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// node is one record of the subtree being localized.
type node struct {
	src *model.Record
	// existing is the uid of a translation created by an earlier pass, or 0.
	existing int64
}

// plan is the immutable result of walking a subtree in depth-first
// pre-order along child collections.
type plan struct {
	lang  int64
	nodes []*node
	index map[model.Key]*node
	// parents are pointer targets outside the subtree whose translations
	// may have to list a node in their inverse collection.
	parents []model.Key
}

const (
	unvisited = iota
	inProgress
	done
)

type planner struct {
	st    record.Store
	reg   *schema.Registry
	lang  int64
	state map[model.Key]int
	stack []model.Key
	p     *plan
}

// buildPlan walks the subtree of table:uid without writing anything.
func buildPlan(ctx context.Context, st record.Store, reg *schema.Registry, table string, uid, lang int64) (*plan, error) {
	pl := &planner{
		st:    st,
		reg:   reg,
		lang:  lang,
		state: make(map[model.Key]int),
		p: &plan{
			lang:  lang,
			index: make(map[model.Key]*node),
		},
	}
	if err := pl.visit(ctx, model.Key{Table: table, UID: uid}); err != nil {
		return nil, err
	}
	pl.collectParents()
	return pl.p, nil
}

func (pl *planner) visit(ctx context.Context, key model.Key) error {
	switch pl.state[key] {
	case inProgress:
		start := slices.Index(pl.stack, key)
		path := append(slices.Clone(pl.stack[start:]), key)
		return &CycleError{Path: path}
	case done:
		return nil
	}

	rels, err := pl.reg.RelationsOf(key.Table)
	if err != nil {
		return err
	}
	src, err := pl.st.Get(ctx, key.Table, key.UID)
	if err != nil {
		return err
	}
	if !src.IsDefaultLanguage() {
		return fmt.Errorf("%w: %s is a translation (language %d)", record.ErrValidation, key, src.LanguageID)
	}
	existing, _, err := pl.st.FindLocalization(ctx, key.Table, key.UID, pl.lang)
	if err != nil {
		return err
	}

	n := &node{src: src, existing: existing}
	pl.p.nodes = append(pl.p.nodes, n)
	pl.p.index[key] = n
	pl.state[key] = inProgress
	pl.stack = append(pl.stack, key)

	for _, rel := range rels {
		if rel.Kind != schema.ChildCollection {
			continue
		}
		for _, child := range src.Collection(rel.Field) {
			if err := pl.visit(ctx, model.Key{Table: rel.TargetTable, UID: child}); err != nil {
				return err
			}
		}
	}

	pl.stack = pl.stack[:len(pl.stack)-1]
	pl.state[key] = done
	return nil
}

func (pl *planner) collectParents() {
	seen := make(map[model.Key]bool)
	for _, n := range pl.p.nodes {
		rels, _ := pl.reg.RelationsOf(n.src.Table)
		for _, rel := range rels {
			if rel.Kind != schema.ParentPointer {
				continue
			}
			target := n.src.Pointer(rel.Field)
			if target == 0 {
				continue
			}
			k := model.Key{Table: rel.TargetTable, UID: target}
			if _, inPlan := pl.p.index[k]; inPlan || seen[k] {
				continue
			}
			seen[k] = true
			pl.p.parents = append(pl.p.parents, k)
		}
	}
}

// lockKeys returns the lock keys of every node and outside parent.
func (p *plan) lockKeys() []string {
	keys := make([]string, 0, len(p.nodes)+len(p.parents))
	for _, n := range p.nodes {
		keys = append(keys, lockKey(n.src.Key(), p.lang))
	}
	for _, k := range p.parents {
		keys = append(keys, lockKey(k, p.lang))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// coveredBy reports whether every lock key of p is in held.
func (p *plan) coveredBy(held []string) bool {
	for _, k := range p.lockKeys() {
		if _, ok := slices.BinarySearch(held, k); !ok {
			return false
		}
	}
	return true
}

func lockKey(k model.Key, lang int64) string {
	return fmt.Sprintf("%s:%d", k, lang)
}

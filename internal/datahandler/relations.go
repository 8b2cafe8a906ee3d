// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package datahandler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

const colPosField = "colPos"

// setPointer points table:uid at target and moves the record between the
// inverse collections of its old and new parent.
func (h *DataHandler) setPointer(ctx context.Context, tx record.Store, table string, uid int64, rel schema.RelationField, target int64) error {
	rec, err := tx.Get(ctx, table, uid)
	if err != nil {
		return err
	}
	old := rec.Pointer(rel.Field)

	patch := model.Patch{Pointers: map[string]int64{rel.Field: target}}
	if target != 0 {
		parent, err := tx.Get(ctx, rel.TargetTable, target)
		if err != nil {
			return err
		}
		if patch, err = h.attach(rec, rel, parent); err != nil {
			return err
		}
	}
	if err := tx.Update(ctx, table, uid, patch); err != nil {
		return err
	}

	inverse, ok, err := h.reg.InverseOf(table, rel.Field)
	if err != nil || !ok {
		return err
	}
	if old != 0 && old != target {
		if err := removeChild(ctx, tx, rel.TargetTable, old, inverse.Field, uid); err != nil {
			return err
		}
	}
	if target != 0 {
		return appendChild(ctx, tx, rel.TargetTable, target, inverse.Field, uid)
	}
	return nil
}

// setCollection replaces the children of table:uid and points every child
// at the record. Children dropped from the list lose their parent.
func (h *DataHandler) setCollection(ctx context.Context, tx record.Store, table string, uid int64, rel schema.RelationField, children []int64) error {
	parent, err := tx.Get(ctx, table, uid)
	if err != nil {
		return err
	}
	inverse, ok, err := h.reg.InverseOf(table, rel.Field)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s has no inverse pointer", record.ErrValidation, table, rel.Field)
	}

	if err := tx.Update(ctx, table, uid, model.Patch{
		Collections: map[string][]int64{rel.Field: children},
	}); err != nil {
		return err
	}

	for _, childUID := range children {
		child, err := tx.Get(ctx, rel.TargetTable, childUID)
		if err != nil {
			return err
		}
		old := child.Pointer(inverse.Field)
		if old == uid {
			continue
		}
		patch, err := h.attach(child, inverse, parent)
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, rel.TargetTable, childUID, patch); err != nil {
			return err
		}
		if old != 0 {
			if err := removeChild(ctx, tx, table, old, rel.Field, childUID); err != nil {
				return err
			}
		}
	}

	for _, dropped := range parent.Collection(rel.Field) {
		if slices.Contains(children, dropped) {
			continue
		}
		child, err := tx.Get(ctx, rel.TargetTable, dropped)
		if err != nil {
			return err
		}
		if child.Pointer(inverse.Field) != uid {
			continue
		}
		if err := tx.Update(ctx, rel.TargetTable, dropped, model.Patch{
			Pointers: map[string]int64{inverse.Field: 0},
		}); err != nil {
			return err
		}
	}
	return nil
}

// checkPID validates storing table:uid on page pid. uid is 0 for records
// not inserted yet. A page cannot move below itself or its subpages.
func (h *DataHandler) checkPID(ctx context.Context, table string, uid, pid int64) error {
	if pid < 0 {
		return fmt.Errorf("%w: invalid pid %d", record.ErrValidation, pid)
	}
	seen := make(map[int64]bool)
	for cur := pid; cur != 0; {
		if table == schema.TablePages && cur == uid {
			return fmt.Errorf("%w: %s:%d cannot move below itself or its subpage %d",
				record.ErrValidation, table, uid, pid)
		}
		if seen[cur] {
			return fmt.Errorf("%w: page %d is part of a page cycle", record.ErrValidation, cur)
		}
		seen[cur] = true

		page, err := h.store.Get(ctx, schema.TablePages, cur)
		if errors.Is(err, record.ErrNotFound) {
			return fmt.Errorf("%w: pid references missing %s:%d", record.ErrValidation, schema.TablePages, cur)
		}
		if err != nil {
			return err
		}
		if cur == pid && !page.IsDefaultLanguage() {
			return fmt.Errorf("%w: pid %d is a page translation", record.ErrValidation, pid)
		}
		if table != schema.TablePages || uid == 0 {
			return nil
		}
		cur = page.PID
	}
	return nil
}

// attach validates pointing child at parent through the pointer field rel
// and returns the patch for child. Container children get a column.
func (h *DataHandler) attach(child *model.Record, rel schema.RelationField, parent *model.Record) (model.Patch, error) {
	patch := model.Patch{Pointers: map[string]int64{rel.Field: parent.UID}}

	parentTbl, err := h.reg.Table(parent.Table)
	if err != nil {
		return patch, err
	}
	parentType := parent.Field(parentTbl.TypeField)
	if len(rel.AllowedTypes) > 0 && !slices.Contains(rel.AllowedTypes, parentType) {
		return patch, fmt.Errorf("%w: %s.%s cannot point at %s of type %q",
			record.ErrValidation, child.Table, rel.Field, parent.Key(), parentType)
	}

	childTbl, err := h.reg.Table(child.Table)
	if err != nil {
		return patch, err
	}
	if childTbl.ContainerField != rel.Field {
		return patch, nil
	}

	childType := child.Field(childTbl.TypeField)
	if raw := child.Field(colPosField); raw != "" {
		colPos, err := strconv.Atoi(raw)
		if err != nil {
			return patch, fmt.Errorf("%w: invalid %s %q", record.ErrValidation, colPosField, raw)
		}
		if err := h.reg.CheckPlacement(parentType, colPos, childType); err != nil {
			return patch, fmt.Errorf("%w: %w", record.ErrValidation, err)
		}
		return patch, nil
	}

	// No column given: use the first one accepting the child.
	container, ok := h.reg.Container(parentType)
	if !ok {
		return patch, fmt.Errorf("%w: %w", record.ErrValidation, h.reg.CheckPlacement(parentType, 0, childType))
	}
	for _, col := range container.Columns {
		if h.reg.CheckPlacement(parentType, col.ColPos, childType) == nil {
			patch.Fields = map[string]string{colPosField: strconv.Itoa(col.ColPos)}
			return patch, nil
		}
	}
	return patch, fmt.Errorf("%w: %w: no column of %q accepts %q",
		record.ErrValidation, schema.ErrPlacement, parentType, childType)
}

func appendChild(ctx context.Context, tx record.Store, table string, uid int64, field string, child int64) error {
	rec, err := tx.Get(ctx, table, uid)
	if err != nil {
		return err
	}
	coll := rec.Collection(field)
	if slices.Contains(coll, child) {
		return nil
	}
	return tx.Update(ctx, table, uid, model.Patch{
		Collections: map[string][]int64{field: append(coll, child)},
	})
}

func removeChild(ctx context.Context, tx record.Store, table string, uid int64, field string, child int64) error {
	rec, err := tx.Get(ctx, table, uid)
	if err != nil {
		return err
	}
	coll := rec.Collection(field)
	i := slices.Index(coll, child)
	if i < 0 {
		return nil
	}
	return tx.Update(ctx, table, uid, model.Patch{
		Collections: map[string][]int64{field: slices.Delete(coll, i, i+1)},
	})
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fixture builds record trees of the example tables for tests.
package fixture

import (
	"context"
	"testing"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// Insert stores rec and fails the test on error.
func Insert(t *testing.T, st record.Store, rec *model.Record) int64 {
	t.Helper()
	uid, err := st.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("inserting %s: %v", rec.Table, err)
	}
	return uid
}

// Page inserts a page below pid.
func Page(t *testing.T, st record.Store, pid int64, title string) int64 {
	t.Helper()
	return Insert(t, st, &model.Record{
		Table:  schema.TablePages,
		PID:    pid,
		Fields: map[string]string{"title": title},
	})
}

// Link appends children to the collection field of a parent and sets the
// inverse pointer of every child.
func Link(t *testing.T, st record.Store, reg *schema.Registry, parentTable string, parent int64, field string, children ...int64) {
	t.Helper()
	ctx := context.Background()

	rel, err := reg.Relation(parentTable, field)
	if err != nil {
		t.Fatalf("relation %s.%s: %v", parentTable, field, err)
	}
	rec, err := st.Get(ctx, parentTable, parent)
	if err != nil {
		t.Fatalf("loading %s:%d: %v", parentTable, parent, err)
	}

	coll := append(rec.Collection(field), children...)
	if err := st.Update(ctx, parentTable, parent, model.Patch{
		Collections: map[string][]int64{field: coll},
	}); err != nil {
		t.Fatalf("linking %s.%s: %v", parentTable, field, err)
	}
	for _, child := range children {
		if err := st.Update(ctx, rel.TargetTable, child, model.Patch{
			Pointers: map[string]int64{rel.InverseField: parent},
		}); err != nil {
			t.Fatalf("setting %s.%s of %d: %v", rel.TargetTable, rel.InverseField, child, err)
		}
	}
}

// WallTree is a wall collection element with one wall holding one brick.
type WallTree struct {
	Page    int64
	Content int64
	Wall    int64
	Brick   int64
}

// Keys returns the records of the tree, root first.
func (w WallTree) Keys() []model.Key {
	return []model.Key{
		{Table: schema.TableContent, UID: w.Content},
		{Table: schema.TableWall, UID: w.Wall},
		{Table: schema.TableBrick, UID: w.Brick},
	}
}

// BuildWallTree creates a page with content element E, wall W in E and
// brick B in W.
func BuildWallTree(t *testing.T, st record.Store, reg *schema.Registry) WallTree {
	t.Helper()

	var w WallTree
	w.Page = Page(t, st, 0, "Home")
	w.Content = Insert(t, st, &model.Record{
		Table: schema.TableContent,
		PID:   w.Page,
		Fields: map[string]string{
			"CType":  schema.TypeWallCollection,
			"header": "Wall Collection Content Element",
		},
	})
	w.Wall = Insert(t, st, &model.Record{
		Table:  schema.TableWall,
		PID:    w.Page,
		Fields: map[string]string{"title": "Wall"},
	})
	w.Brick = Insert(t, st, &model.Record{
		Table:  schema.TableBrick,
		PID:    w.Page,
		Fields: map[string]string{"title": "Brick"},
	})
	Link(t, st, reg, schema.TableContent, w.Content, schema.FieldContentWalls, w.Wall)
	Link(t, st, reg, schema.TableWall, w.Wall, schema.FieldWallBricks, w.Brick)
	return w
}

// Cascaded is the nested case: two levels of containers around a wall
// collection element with an upper brick, and a wall holding a lower brick.
type Cascaded struct {
	Page            int64
	ContainerParent int64
	ContainerChild  int64
	Content         int64
	Wall            int64
	UpperBrick      int64
	LowerBrick      int64
}

// Keys returns the records of the tree, root first.
func (c Cascaded) Keys() []model.Key {
	return []model.Key{
		{Table: schema.TableContent, UID: c.ContainerParent},
		{Table: schema.TableContent, UID: c.ContainerChild},
		{Table: schema.TableContent, UID: c.Content},
		{Table: schema.TableWall, UID: c.Wall},
		{Table: schema.TableBrick, UID: c.LowerBrick},
		{Table: schema.TableBrick, UID: c.UpperBrick},
	}
}

// BuildCascaded creates the nested tree on a new page.
func BuildCascaded(t *testing.T, st record.Store, reg *schema.Registry) Cascaded {
	t.Helper()

	var c Cascaded
	c.Page = Page(t, st, 0, "Home")
	content := func(ctype, header string, colPos string) int64 {
		return Insert(t, st, &model.Record{
			Table:  schema.TableContent,
			PID:    c.Page,
			Fields: map[string]string{"CType": ctype, "header": header, "colPos": colPos},
		})
	}
	c.ContainerParent = content(schema.TypeContainerParent, "Container Parent Element", "0")
	c.ContainerChild = content(schema.TypeContainerChild, "Container Child Element", "999")
	c.Content = content(schema.TypeWallCollection, "Wall Collection Content Element", "1000")

	c.Wall = Insert(t, st, &model.Record{
		Table:  schema.TableWall,
		PID:    c.Page,
		Fields: map[string]string{"title": "Inner Wall Title"},
	})
	c.UpperBrick = Insert(t, st, &model.Record{
		Table:  schema.TableBrick,
		PID:    c.Page,
		Fields: map[string]string{"title": "Upper Brick"},
	})
	c.LowerBrick = Insert(t, st, &model.Record{
		Table:  schema.TableBrick,
		PID:    c.Page,
		Fields: map[string]string{"title": "Lower Brick"},
	})

	Link(t, st, reg, schema.TableContent, c.ContainerParent, schema.FieldContainerChildren, c.ContainerChild)
	Link(t, st, reg, schema.TableContent, c.ContainerChild, schema.FieldContainerChildren, c.Content)
	Link(t, st, reg, schema.TableContent, c.Content, schema.FieldContentWalls, c.Wall)
	Link(t, st, reg, schema.TableContent, c.Content, schema.FieldContentBricks, c.UpperBrick)
	Link(t, st, reg, schema.TableWall, c.Wall, schema.FieldWallBricks, c.LowerBrick)
	return c
}

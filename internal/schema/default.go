// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package schema

// Table names of the built-in declaration.
const (
	TablePages   = "pages"
	TableContent = "tt_content"
	TableWall    = "tx_example_wall"
	TableBrick   = "tx_example_brick"
	TableL10nCfg = "tx_l10nmgr_cfg"
)

// Record types of tt_content.
const (
	TypeContainerParent = "example_containerParent"
	TypeContainerChild  = "example_containerChild"
	TypeWallCollection  = "example_wallCollection"
	TypeText            = "text"
)

// Relation fields of the built-in declaration.
const (
	FieldContainerParent   = "tx_container_parent"
	FieldContainerChildren = "tx_container_children"
	FieldContentWalls      = "tx_example_relation_wall"
	FieldContentBricks     = "tx_example_relation_brick"
	FieldWallContent       = "tt_content"
	FieldWallBricks        = "relation_brick"
	FieldBrickContent      = "tt_content"
	FieldBrickWall         = "tx_example_wall"
)

const inlineMaxItems = 10

// DefaultTables returns the declarations of the example extension: walls
// and bricks inline on content elements, nested in two levels of containers.
func DefaultTables() []Table {
	return []Table{
		{
			Name: TablePages,
			Fields: []Field{
				{Name: "title", Translatable: true, Max: 255},
				{Name: "is_siteroot"},
			},
		},
		{
			Name:      TableContent,
			TypeField: "CType",
			Fields: []Field{
				{Name: "CType"},
				{Name: "colPos"},
				{Name: "header", Translatable: true, Max: 255},
				{Name: "bodytext", Translatable: true},
			},
			Relations: []RelationField{
				{Field: FieldContainerParent, Kind: ParentPointer, TargetTable: TableContent, InverseField: FieldContainerChildren,
					AllowedTypes: []string{TypeContainerParent, TypeContainerChild}},
				{Field: FieldContainerChildren, Kind: ChildCollection, TargetTable: TableContent, InverseField: FieldContainerParent},
				{Field: FieldContentWalls, Kind: ChildCollection, TargetTable: TableWall, InverseField: FieldWallContent, MaxItems: inlineMaxItems},
				{Field: FieldContentBricks, Kind: ChildCollection, TargetTable: TableBrick, InverseField: FieldBrickContent, MaxItems: inlineMaxItems},
			},
			ContainerField: FieldContainerParent,
			Containers: []Container{
				{
					Type:  TypeContainerParent,
					Label: "Container Parent Content Element",
					Columns: []Column{
						{Name: "Children", ColPos: 999, Allowed: []string{TypeContainerChild}},
					},
				},
				{
					Type:  TypeContainerChild,
					Label: "Container Child Content Element",
					Columns: []Column{
						{Name: "Content", ColPos: 1000, Allowed: []string{TypeWallCollection}},
					},
				},
			},
		},
		{
			Name:   TableWall,
			Fields: []Field{{Name: "title", Translatable: true, Max: 255}},
			Relations: []RelationField{
				{Field: FieldWallContent, Kind: ParentPointer, TargetTable: TableContent, InverseField: FieldContentWalls,
					AllowedTypes: []string{TypeWallCollection}},
				{Field: FieldWallBricks, Kind: ChildCollection, TargetTable: TableBrick, InverseField: FieldBrickWall, MaxItems: inlineMaxItems},
			},
		},
		{
			Name:   TableBrick,
			Fields: []Field{{Name: "title", Translatable: true, Max: 255}},
			Relations: []RelationField{
				{Field: FieldBrickContent, Kind: ParentPointer, TargetTable: TableContent, InverseField: FieldContentBricks,
					AllowedTypes: []string{TypeWallCollection}},
				{Field: FieldBrickWall, Kind: ParentPointer, TargetTable: TableWall, InverseField: FieldWallBricks},
			},
		},
		{
			Name: TableL10nCfg,
			Fields: []Field{
				{Name: "title"},
				{Name: "depth"},
				{Name: "tablelist"},
				{Name: "exclude"},
			},
		},
	}
}

// Default returns the registry of DefaultTables.
func Default() *Registry {
	return MustNewRegistry(DefaultTables()...)
}

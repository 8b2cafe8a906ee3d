// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package schema describes the relation fields of every record table and
// validates that both directions of each relation are declared.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Schema errors.
var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownField = errors.New("unknown relation field")
	ErrInvalid      = errors.New("invalid schema")
	ErrPlacement    = errors.New("element not allowed here")
)

// Kind is the direction of a relation field.
type Kind int

// Relation kinds.
const (
	ParentPointer Kind = iota + 1
	ChildCollection
)

func (k Kind) String() string {
	switch k {
	case ParentPointer:
		return "pointer"
	case ChildCollection:
		return "collection"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts "pointer" or "collection" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pointer", "parent", "select":
		return ParentPointer, nil
	case "collection", "children", "inline":
		return ChildCollection, nil
	default:
		return 0, fmt.Errorf("%w: relation kind %q", ErrInvalid, s)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseKind(value.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RelationField describes one relation field of a table.
type RelationField struct {
	Field       string `yaml:"field"`
	Kind        Kind   `yaml:"kind"`
	TargetTable string `yaml:"target"`
	// InverseField is the field on TargetTable holding the other direction.
	// Required for collections, optional for pointers.
	InverseField string `yaml:"inverse,omitempty"`
	// AllowedTypes restricts the record type of a pointer target.
	AllowedTypes []string `yaml:"allowed_types,omitempty"`
	// MaxItems limits the length of a collection. Zero means unlimited.
	MaxItems int `yaml:"max_items,omitempty"`
}

// IsCollection returns true for child collection fields.
func (f RelationField) IsCollection() bool {
	return f.Kind == ChildCollection
}

// Field is a scalar column.
type Field struct {
	Name         string `yaml:"name"`
	Translatable bool   `yaml:"translatable,omitempty"`
	// Max is the maximum length in characters. Zero means unlimited.
	Max int `yaml:"max,omitempty"`
}

// Column is a container column accepting a set of record types.
type Column struct {
	Name    string   `yaml:"name"`
	ColPos  int      `yaml:"col_pos"`
	Allowed []string `yaml:"allowed,omitempty"`
}

// Container declares a record type whose children are placed in columns.
type Container struct {
	Type    string   `yaml:"type"`
	Label   string   `yaml:"label,omitempty"`
	Columns []Column `yaml:"columns"`
}

// Column returns the column with the given position.
func (c Container) Column(colPos int) (Column, bool) {
	for _, col := range c.Columns {
		if col.ColPos == colPos {
			return col, true
		}
	}
	return Column{}, false
}

// Table is the declaration of one record table.
type Table struct {
	Name string `yaml:"name"`
	// TypeField names the scalar field holding the record type (CType).
	TypeField string          `yaml:"type_field,omitempty"`
	Fields    []Field         `yaml:"fields,omitempty"`
	Relations []RelationField `yaml:"relations,omitempty"`
	// ContainerField is the pointer field linking a child to its container.
	ContainerField string      `yaml:"container_field,omitempty"`
	Containers     []Container `yaml:"containers,omitempty"`
}

// Field returns a scalar field declaration.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TranslatableFields returns the names of the fields exported for translation.
func (t *Table) TranslatableFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Translatable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Relation returns a relation field declaration.
func (t *Table) Relation(field string) (RelationField, bool) {
	for _, r := range t.Relations {
		if r.Field == field {
			return r, true
		}
	}
	return RelationField{}, false
}

// Registry is an immutable set of table declarations.
type Registry struct {
	order      []string
	tables     map[string]*Table
	containers map[string]Container
}

// NewRegistry validates the declarations and builds a registry. Tables keep
// the order they are passed in.
func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{
		tables:     make(map[string]*Table, len(tables)),
		containers: make(map[string]Container),
	}

	var errs error
	for i := range tables {
		t := tables[i]
		if t.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: table %d has no name", ErrInvalid, i))
			continue
		}
		if _, dup := r.tables[t.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: table %q declared twice", ErrInvalid, t.Name))
			continue
		}
		r.tables[t.Name] = &t
		r.order = append(r.order, t.Name)
		for _, c := range t.Containers {
			r.containers[c.Type] = c
		}
	}

	for _, name := range r.order {
		errs = multierr.Append(errs, r.validateTable(r.tables[name]))
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(tables ...Table) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) validateTable(t *Table) error {
	var errs error
	seen := make(map[string]bool)
	for _, f := range t.Relations {
		if seen[f.Field] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s declared twice", ErrInvalid, t.Name, f.Field))
			continue
		}
		seen[f.Field] = true

		target, ok := r.tables[f.TargetTable]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s targets unknown table %q", ErrInvalid, t.Name, f.Field, f.TargetTable))
			continue
		}

		switch f.Kind {
		case ChildCollection:
			if f.InverseField == "" {
				errs = multierr.Append(errs, fmt.Errorf("%w: collection %s.%s has no inverse field", ErrInvalid, t.Name, f.Field))
				continue
			}
			inv, ok := target.Relation(f.InverseField)
			if !ok || inv.Kind != ParentPointer || inv.TargetTable != t.Name || inv.InverseField != f.Field {
				errs = multierr.Append(errs, fmt.Errorf("%w: collection %s.%s needs pointer %s.%s -> %s with inverse %s",
					ErrInvalid, t.Name, f.Field, target.Name, f.InverseField, t.Name, f.Field))
			}
		case ParentPointer:
			if f.MaxItems != 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: pointer %s.%s cannot set max_items", ErrInvalid, t.Name, f.Field))
			}
			if f.InverseField == "" {
				continue
			}
			inv, ok := target.Relation(f.InverseField)
			if !ok || inv.Kind != ChildCollection || inv.TargetTable != t.Name || inv.InverseField != f.Field {
				errs = multierr.Append(errs, fmt.Errorf("%w: pointer %s.%s needs collection %s.%s -> %s with inverse %s",
					ErrInvalid, t.Name, f.Field, target.Name, f.InverseField, t.Name, f.Field))
			}
		default:
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s has no kind", ErrInvalid, t.Name, f.Field))
		}
	}

	if len(t.Containers) > 0 {
		if t.TypeField == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: table %s declares containers without a type field", ErrInvalid, t.Name))
		}
		f, ok := t.Relation(t.ContainerField)
		if !ok || f.Kind != ParentPointer || f.TargetTable != t.Name {
			errs = multierr.Append(errs, fmt.Errorf("%w: container field %s.%s must be a pointer to %s", ErrInvalid, t.Name, t.ContainerField, t.Name))
		}
	}
	return errs
}

// Tables returns the registered table names in declaration order.
func (r *Registry) Tables() []string {
	return slices.Clone(r.order)
}

// Has returns true if the table is registered.
func (r *Registry) Has(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// Table returns the declaration of a table.
func (r *Registry) Table(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// RelationsOf returns the relation fields of a table.
func (r *Registry) RelationsOf(table string) ([]RelationField, error) {
	t, err := r.Table(table)
	if err != nil {
		return nil, err
	}
	return t.Relations, nil
}

// Relation returns one relation field of a table.
func (r *Registry) Relation(table, field string) (RelationField, error) {
	t, err := r.Table(table)
	if err != nil {
		return RelationField{}, err
	}
	f, ok := t.Relation(field)
	if !ok {
		return RelationField{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, table, field)
	}
	return f, nil
}

// InverseOf returns the field holding the other direction of table.field.
// ok is false for pointers without an inverse collection.
func (r *Registry) InverseOf(table, field string) (inv RelationField, ok bool, err error) {
	f, err := r.Relation(table, field)
	if err != nil {
		return RelationField{}, false, err
	}
	if f.InverseField == "" {
		return RelationField{}, false, nil
	}
	inv, err = r.Relation(f.TargetTable, f.InverseField)
	if err != nil {
		return RelationField{}, false, err
	}
	return inv, true, nil
}

// Container returns the container declaration of a record type.
func (r *Registry) Container(recordType string) (Container, bool) {
	c, ok := r.containers[recordType]
	return c, ok
}

// CheckPlacement reports whether a record of childType may be placed in
// column colPos of a container of containerType.
func (r *Registry) CheckPlacement(containerType string, colPos int, childType string) error {
	c, ok := r.containers[containerType]
	if !ok {
		return fmt.Errorf("%w: %q is not a container", ErrPlacement, containerType)
	}
	col, ok := c.Column(colPos)
	if !ok {
		return fmt.Errorf("%w: container %q has no column %d", ErrPlacement, containerType, colPos)
	}
	if len(col.Allowed) > 0 && !slices.Contains(col.Allowed, childType) {
		return fmt.Errorf("%w: %q in column %q of %q (allowed: %s)",
			ErrPlacement, childType, col.Name, containerType, strings.Join(col.Allowed, ", "))
	}
	return nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// DefaultLanguage is the language id of source records.
const DefaultLanguage int64 = 0

// Key addresses a record.
type Key struct {
	Table string `json:"table"`
	UID   int64  `json:"uid"`
}

// String returns "table:uid".
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Table, k.UID)
}

// Record is a row of any registered table. Relation fields are split into
// single parent pointers and ordered child collections.
type Record struct {
	Table       string             `json:"table"`
	UID         int64              `json:"uid"`
	PID         int64              `json:"pid"`
	LanguageID  int64              `json:"sys_language_uid"`
	L10nParent  int64              `json:"l10n_parent"`
	Version     int64              `json:"version"`
	Fields      map[string]string  `json:"fields"`
	Pointers    map[string]int64   `json:"pointers"`
	Collections map[string][]int64 `json:"collections"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Key returns the address of the record.
func (r *Record) Key() Key {
	return Key{Table: r.Table, UID: r.UID}
}

// IsDefaultLanguage returns true if the record is a source record.
func (r *Record) IsDefaultLanguage() bool {
	return r.LanguageID == DefaultLanguage
}

// Field returns a scalar field value or "".
func (r *Record) Field(name string) string {
	return r.Fields[name]
}

// Pointer returns the target uid of a parent pointer field or 0.
func (r *Record) Pointer(name string) int64 {
	return r.Pointers[name]
}

// Collection returns the ordered uids of a child collection field.
func (r *Record) Collection(name string) []int64 {
	return r.Collections[name]
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	c.Pointers = maps.Clone(r.Pointers)
	c.Collections = make(map[string][]int64, len(r.Collections))
	for k, v := range r.Collections {
		c.Collections[k] = slices.Clone(v)
	}
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	if c.Pointers == nil {
		c.Pointers = map[string]int64{}
	}
	return &c
}

// Patch is a partial update of a record. Nil maps leave the corresponding
// part untouched; a nil PID leaves the page unchanged.
type Patch struct {
	PID         *int64
	Fields      map[string]string
	Pointers    map[string]int64
	Collections map[string][]int64
}

// IsEmpty returns true if the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.PID == nil && len(p.Fields) == 0 && len(p.Pointers) == 0 && len(p.Collections) == 0
}

// ApplyTo writes the patch into r.
func (p Patch) ApplyTo(r *Record) {
	if p.PID != nil {
		r.PID = *p.PID
	}
	if len(p.Fields) > 0 && r.Fields == nil {
		r.Fields = map[string]string{}
	}
	for k, v := range p.Fields {
		r.Fields[k] = v
	}
	if len(p.Pointers) > 0 && r.Pointers == nil {
		r.Pointers = map[string]int64{}
	}
	for k, v := range p.Pointers {
		r.Pointers[k] = v
	}
	if len(p.Collections) > 0 && r.Collections == nil {
		r.Collections = map[string][]int64{}
	}
	for k, v := range p.Collections {
		r.Collections[k] = slices.Clone(v)
	}
}

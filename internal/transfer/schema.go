// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer exports records selected by a localization configuration
// to the line-oriented localization XML format and imports translated files
// back through the localization engine.
package transfer

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/olegiv/ocms-l10n/internal/model"
)

// FormatVersion is written to the head of every exported document.
const FormatVersion = "1.2"

// Errors returned by the transfer package.
var (
	ErrInvalidDocument  = errors.New("invalid localization document")
	ErrLanguageMismatch = errors.New("document language does not match")
)

// Document is an exported or parsed localization file.
type Document struct {
	Header Header
	Pages  []PageGroup
}

// Header is the head section of a document.
type Header struct {
	// ConfigUID is the uid of the tx_l10nmgr_cfg record used for export.
	ConfigUID int64
	// SysLang is the id of the target language.
	SysLang int64
	// SourceLang and TargetLang are BCP 47 tags.
	SourceLang    string
	TargetLang    string
	FormatVersion string
}

// PageGroup holds the elements of the records stored on one page.
type PageGroup struct {
	ID       int64
	Elements []Element
}

// Element is one data line. Records without translatable fields are
// exported as a single element with an empty Field.
type Element struct {
	Table string
	UID   int64
	Field string
	Value string
}

// Key returns the record the element belongs to.
func (e Element) Key() model.Key {
	return model.Key{Table: e.Table, UID: e.UID}
}

// LineKey is the key attribute of the element, "table:uid:field".
func (e Element) LineKey() string {
	return fmt.Sprintf("%s:%d:%s", e.Table, e.UID, e.Field)
}

// Elements returns the elements of all page groups in document order.
func (d *Document) Elements() []Element {
	var out []Element
	for _, p := range d.Pages {
		out = append(out, p.Elements...)
	}
	return out
}

// Records returns the distinct records of the document in order of first
// appearance.
func (d *Document) Records() []model.Key {
	seen := make(map[model.Key]bool)
	var out []model.Key
	for _, e := range d.Elements() {
		if k := e.Key(); !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// ImportOptions configures an import.
type ImportOptions struct {
	// DryRun validates the document and counts what would be localized
	// without writing.
	DryRun bool `json:"dry_run"`
	// LocalizeParents localizes each element from its top-most ancestor
	// whose table is part of the configuration, instead of the element
	// itself.
	LocalizeParents bool `json:"localize_parents"`
}

// DefaultImportOptions returns the default import options.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{}
}

// ImportError is a failure of a single element.
type ImportError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Message)
}

// ImportResult contains the outcome of an import.
type ImportResult struct {
	Success bool `json:"success"`
	DryRun  bool `json:"dry_run"`
	// Created counts new translations per table.
	Created map[string]int `json:"created"`
	// Updated counts translations whose fields were written per table.
	Updated map[string]int `json:"updated"`
	// Skipped counts records already translated per table (dry run only).
	Skipped map[string]int `json:"skipped"`
	// Translations maps every imported record to its translation.
	Translations map[model.Key]int64 `json:"-"`
	Errors       []ImportError       `json:"errors,omitempty"`
}

// NewImportResult creates an empty result.
func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		Success:      true,
		DryRun:       dryRun,
		Created:      make(map[string]int),
		Updated:      make(map[string]int),
		Skipped:      make(map[string]int),
		Translations: make(map[model.Key]int64),
	}
}

// AddError records an element failure and marks the import unsuccessful.
func (r *ImportResult) AddError(entity, id, message string) {
	r.Errors = append(r.Errors, ImportError{Entity: entity, ID: id, Message: message})
	r.Success = false
}

// IncrementCreated increments the created count of a table.
func (r *ImportResult) IncrementCreated(table string) {
	r.Created[table]++
}

// IncrementUpdated increments the updated count of a table.
func (r *ImportResult) IncrementUpdated(table string) {
	r.Updated[table]++
}

// IncrementSkipped increments the skipped count of a table.
func (r *ImportResult) IncrementSkipped(table string) {
	r.Skipped[table]++
}

// TotalCreated returns the number of created translations.
func (r *ImportResult) TotalCreated() int {
	return total(r.Created)
}

// TotalUpdated returns the number of updated translations.
func (r *ImportResult) TotalUpdated() int {
	return total(r.Updated)
}

// TotalSkipped returns the number of skipped records.
func (r *ImportResult) TotalSkipped() int {
	return total(r.Skipped)
}

// Err combines all element errors, or returns nil.
func (r *ImportResult) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}

// Summary returns a one-line description of the result.
func (r *ImportResult) Summary() string {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("dry run: ")
	}
	fmt.Fprintf(&b, "%d created, %d updated, %d skipped, %d errors",
		r.TotalCreated(), r.TotalUpdated(), r.TotalSkipped(), len(r.Errors))
	return b.String()
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

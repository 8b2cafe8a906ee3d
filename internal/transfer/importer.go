// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/olegiv/ocms-l10n/internal/l10n"
	"github.com/olegiv/ocms-l10n/internal/logging"
	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
)

// Importer localizes the records of a translated document and writes the
// translated values into the localized copies.
type Importer struct {
	store  record.Store
	reg    *schema.Registry
	engine *l10n.Engine
	site   *site.Site
	logger *slog.Logger
}

// NewImporter creates a new Importer instance.
func NewImporter(st record.Store, reg *schema.Registry, engine *l10n.Engine, s *site.Site, logger *slog.Logger) *Importer {
	return &Importer{
		store:  st,
		reg:    reg,
		engine: engine,
		site:   s,
		logger: logging.WithCategory(logger, logging.CategoryImport),
	}
}

// Import localizes every record of doc into lang, in order of first
// appearance. Element failures are collected in the result; the returned
// error is only set if the document cannot be imported at all.
func (i *Importer) Import(ctx context.Context, doc *Document, lang int64, opts ImportOptions) (*ImportResult, error) {
	if err := i.checkHeader(doc, lang); err != nil {
		return nil, err
	}

	var cfg *Configuration
	if opts.LocalizeParents && doc.Header.ConfigUID > 0 {
		var err error
		if cfg, err = LoadConfiguration(ctx, i.store, i.reg, doc.Header.ConfigUID); err != nil {
			return nil, err
		}
	}

	values := make(map[model.Key]map[string]string)
	for _, el := range doc.Elements() {
		if el.Field == "" {
			continue
		}
		if values[el.Key()] == nil {
			values[el.Key()] = make(map[string]string)
		}
		values[el.Key()][el.Field] = el.Value
	}

	result := NewImportResult(opts.DryRun)
	for _, k := range doc.Records() {
		var err error
		if opts.DryRun {
			err = i.count(ctx, k, lang, values[k], result)
		} else {
			err = i.importRecord(ctx, k, lang, values[k], cfg, opts, result)
		}
		if err != nil {
			i.logger.Warn("import of element failed", "table", k.Table, "uid", k.UID, "error", err)
			result.AddError(k.Table, k.String(), err.Error())
		}
	}

	i.logger.Info("imported localization document",
		"configuration", doc.Header.ConfigUID, "language", lang, "summary", result.Summary())
	return result, nil
}

// ImportFromReader parses and imports a document.
func (i *Importer) ImportFromReader(ctx context.Context, r io.Reader, lang int64, opts ImportOptions) (*ImportResult, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, doc, lang, opts)
}

// ImportFromFile parses and imports a document file.
func (i *Importer) ImportFromFile(ctx context.Context, path string, lang int64, opts ImportOptions) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return i.ImportFromReader(ctx, f, lang, opts)
}

func (i *Importer) checkHeader(doc *Document, lang int64) error {
	h := doc.Header
	if h.SysLang == 0 && h.TargetLang == "" {
		return fmt.Errorf("%w: head names no target language", ErrInvalidDocument)
	}
	if h.SysLang != 0 && h.SysLang != lang {
		return fmt.Errorf("%w: document is for language %d, not %d", ErrLanguageMismatch, h.SysLang, lang)
	}
	if h.TargetLang != "" {
		l, err := i.site.LanguageByTag(h.TargetLang)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLanguageMismatch, err)
		}
		if l.ID != lang {
			return fmt.Errorf("%w: document is for %q, not language %d", ErrLanguageMismatch, h.TargetLang, lang)
		}
	}
	return nil
}

func (i *Importer) checkFields(table string, fields map[string]string) error {
	tbl, err := i.reg.Table(table)
	if err != nil {
		return err
	}
	for name := range fields {
		f, ok := tbl.Field(name)
		if !ok || !f.Translatable {
			return fmt.Errorf("%w: %s.%s is not translatable", record.ErrValidation, table, name)
		}
	}
	return nil
}

func (i *Importer) count(ctx context.Context, k model.Key, lang int64, fields map[string]string, result *ImportResult) error {
	if err := i.checkFields(k.Table, fields); err != nil {
		return err
	}
	if _, err := i.store.Get(ctx, k.Table, k.UID); err != nil {
		return err
	}
	_, found, err := i.store.FindLocalization(ctx, k.Table, k.UID, lang)
	if err != nil {
		return err
	}
	if found {
		result.IncrementSkipped(k.Table)
	} else {
		result.IncrementCreated(k.Table)
	}
	return nil
}

func (i *Importer) importRecord(ctx context.Context, k model.Key, lang int64, fields map[string]string, cfg *Configuration, opts ImportOptions, result *ImportResult) error {
	if err := i.checkFields(k.Table, fields); err != nil {
		return err
	}

	root := k
	if opts.LocalizeParents {
		var err error
		if root, err = i.topAncestor(ctx, k, cfg); err != nil {
			return err
		}
	}

	out, err := i.engine.LocalizeDetailed(ctx, root.Table, root.UID, lang)
	if err != nil {
		return err
	}
	for _, c := range out.Created {
		result.IncrementCreated(c.Table)
	}

	locUID, ok := out.Translations[k]
	if !ok {
		var found bool
		if locUID, found, err = i.store.FindLocalization(ctx, k.Table, k.UID, lang); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: %s is not reachable from %s", record.ErrConsistency, k, root)
		}
	}
	result.Translations[k] = locUID

	if len(fields) == 0 {
		return nil
	}
	if err := i.store.Update(ctx, k.Table, locUID, model.Patch{Fields: fields}); err != nil {
		return fmt.Errorf("writing translation %d: %w", locUID, err)
	}
	result.IncrementUpdated(k.Table)
	return nil
}

// topAncestor follows parent pointers from k while the parent's table is
// part of cfg. A nil cfg accepts every table.
func (i *Importer) topAncestor(ctx context.Context, k model.Key, cfg *Configuration) (model.Key, error) {
	seen := map[model.Key]bool{k: true}
	path := []model.Key{k}
	cur := k
	for {
		parent, ok, err := i.parentOf(ctx, cur, cfg)
		if err != nil {
			return k, err
		}
		if !ok {
			return cur, nil
		}
		if seen[parent] {
			return k, &l10n.CycleError{Path: append(path, parent)}
		}
		seen[parent] = true
		path = append(path, parent)
		cur = parent
	}
}

func (i *Importer) parentOf(ctx context.Context, k model.Key, cfg *Configuration) (model.Key, bool, error) {
	rec, err := i.store.Get(ctx, k.Table, k.UID)
	if err != nil {
		return model.Key{}, false, err
	}
	rels, err := i.reg.RelationsOf(k.Table)
	if err != nil {
		return model.Key{}, false, err
	}
	for _, rel := range rels {
		if rel.IsCollection() || rel.InverseField == "" {
			continue
		}
		target := rec.Pointer(rel.Field)
		if target == 0 || (cfg != nil && !cfg.HasTable(rel.TargetTable)) {
			continue
		}
		return model.Key{Table: rel.TargetTable, UID: target}, true, nil
	}
	return model.Key{}, false, nil
}

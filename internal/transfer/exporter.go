// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/olegiv/ocms-l10n/internal/l10n"
	"github.com/olegiv/ocms-l10n/internal/logging"
	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
)

// Exporter writes the default language records selected by a
// configuration to a localization document.
type Exporter struct {
	store  record.Store
	reg    *schema.Registry
	site   *site.Site
	logger *slog.Logger
}

// NewExporter creates a new Exporter instance.
func NewExporter(st record.Store, reg *schema.Registry, s *site.Site, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:  st,
		reg:    reg,
		site:   s,
		logger: logging.WithCategory(logger, logging.CategoryExport),
	}
}

// Export builds the document of cfg for the target language lang.
func (e *Exporter) Export(ctx context.Context, cfg *Configuration, lang int64) (*Document, error) {
	if lang <= model.DefaultLanguage {
		return nil, fmt.Errorf("%w: target language %d", record.ErrValidation, lang)
	}
	source, err := e.site.Tag(model.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	target, err := e.site.Tag(lang)
	if err != nil {
		return nil, err
	}

	doc := &Document{Header: Header{
		ConfigUID:     cfg.UID,
		SysLang:       lang,
		SourceLang:    source.String(),
		TargetLang:    target.String(),
		FormatVersion: FormatVersion,
	}}

	pages, err := e.pageTree(ctx, cfg.PID, cfg.Depth, nil)
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		group := PageGroup{ID: page.UID}
		for _, table := range cfg.Tables {
			var records []*model.Record
			if table == schema.TablePages {
				records = []*model.Record{page}
			} else if records, err = e.store.ListByPID(ctx, table, page.UID, model.DefaultLanguage); err != nil {
				return nil, fmt.Errorf("listing %s on page %d: %w", table, page.UID, err)
			}

			for _, rec := range records {
				if cfg.Excludes(rec.Key()) {
					continue
				}
				els, err := e.elements(rec)
				if err != nil {
					return nil, err
				}
				group.Elements = append(group.Elements, els...)
			}
		}
		doc.Pages = append(doc.Pages, group)
	}

	e.logger.Info("exported localization document",
		"configuration", cfg.UID, "language", lang,
		"pages", len(doc.Pages), "elements", len(doc.Elements()))
	return doc, nil
}

// ExportToWriter writes the document of cfg as XML to w.
func (e *Exporter) ExportToWriter(ctx context.Context, cfg *Configuration, lang int64, w io.Writer) error {
	doc, err := e.Export(ctx, cfg, lang)
	if err != nil {
		return err
	}
	_, err = doc.WriteTo(w)
	return err
}

// ExportToFile writes the document of cfg as XML to a file.
func (e *Exporter) ExportToFile(ctx context.Context, cfg *Configuration, lang int64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.ExportToWriter(ctx, cfg, lang, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// pageTree returns the page root and its subpages down to depth levels,
// parents before children. path lists the pages above root; a subpage
// repeating one of them is a cycle.
func (e *Exporter) pageTree(ctx context.Context, root int64, depth int, path []model.Key) ([]*model.Record, error) {
	key := model.Key{Table: schema.TablePages, UID: root}
	if i := slices.Index(path, key); i >= 0 {
		cycle := append(slices.Clone(path[i:]), key)
		return nil, fmt.Errorf("walking page tree: %w", &l10n.CycleError{Path: cycle})
	}

	page, err := e.store.Get(ctx, schema.TablePages, root)
	if err != nil {
		if len(path) == 0 {
			return nil, fmt.Errorf("loading start page: %w", err)
		}
		return nil, fmt.Errorf("loading page %d: %w", root, err)
	}
	if !page.IsDefaultLanguage() {
		return nil, fmt.Errorf("%w: start page %d is a translation", record.ErrValidation, root)
	}

	out := []*model.Record{page}
	if depth == 0 {
		return out, nil
	}
	subpages, err := e.store.ListByPID(ctx, schema.TablePages, root, model.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("listing subpages of %d: %w", root, err)
	}
	path = append(path, key)
	for _, sub := range subpages {
		tree, err := e.pageTree(ctx, sub.UID, depth-1, path)
		if err != nil {
			return nil, err
		}
		out = append(out, tree...)
	}
	return out, nil
}

func (e *Exporter) elements(rec *model.Record) ([]Element, error) {
	tbl, err := e.reg.Table(rec.Table)
	if err != nil {
		return nil, err
	}
	fields := tbl.TranslatableFields()
	if len(fields) == 0 {
		return []Element{{Table: rec.Table, UID: rec.UID}}, nil
	}
	out := make([]Element, 0, len(fields))
	for _, f := range fields {
		out = append(out, Element{Table: rec.Table, UID: rec.UID, Field: f, Value: rec.Field(f)})
	}
	return out, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that integrates with the
// sys_log table. It forwards logs at WARN level and above to the database so
// that failed batches, localizations and imports can be audited later.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/ocms-l10n/internal/store"
)

// Log levels stored in sys_log.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Log categories stored in sys_log.
const (
	CategoryDataHandler = "datahandler"
	CategoryLocalize    = "localize"
	CategoryImport      = "import"
	CategoryExport      = "export"
	CategorySystem      = "system"
)

// CategoryKey is the attribute holding the category of a log record.
const CategoryKey = "category"

// SysLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the sys_log table.
type SysLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level // Minimum level to forward to sys_log (default: WARN)
	attrs   []slog.Attr
}

// NewSysLogHandler creates a new SysLogHandler that wraps the given handler.
// Logs at WARN level and above will be written to both the wrapped handler and sys_log.
func NewSysLogHandler(inner slog.Handler, db *sql.DB) *SysLogHandler {
	return NewSysLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewSysLogHandlerWithLevel creates a new SysLogHandler with a custom minimum level.
func NewSysLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *SysLogHandler {
	return &SysLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// WithCategory returns a logger whose records carry the given category.
func WithCategory(logger *slog.Logger, category string) *slog.Logger {
	return logger.With(CategoryKey, category)
}

// Enabled implements slog.Handler.
func (h *SysLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SysLogHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always forward to the inner handler first
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeToSysLog(r)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *SysLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SysLogHandler{
		inner:   h.inner.WithAttrs(attrs),
		queries: h.queries,
		level:   h.level,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

// WithGroup implements slog.Handler.
func (h *SysLogHandler) WithGroup(name string) slog.Handler {
	return &SysLogHandler{
		inner:   h.inner.WithGroup(name),
		queries: h.queries,
		level:   h.level,
		attrs:   h.attrs,
	}
}

// writeToSysLog writes a log record to the database.
func (h *SysLogHandler) writeToSysLog(r slog.Record) {
	attrs := h.collectAttrs(r)

	// Background context: the entry is written even if the caller's context
	// is already cancelled.
	_, _ = h.queries.CreateSysLog(context.Background(), store.CreateSysLogParams{
		Level:     levelName(r.Level),
		Category:  category(r.Message, attrs),
		Message:   r.Message,
		Metadata:  metadata(attrs),
		CreatedAt: r.Time,
	})
}

func (h *SysLogHandler) collectAttrs(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

// levelName converts a slog.Level to a sys_log level.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// category returns the "category" attribute, or infers one from the message.
func category(msg string, attrs []slog.Attr) string {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == CategoryKey {
			return attrs[i].Value.String()
		}
	}

	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "locali"):
		return CategoryLocalize
	case strings.Contains(msg, "import"):
		return CategoryImport
	case strings.Contains(msg, "export"):
		return CategoryExport
	case strings.Contains(msg, "record") || strings.Contains(msg, "batch") || strings.Contains(msg, "placeholder"):
		return CategoryDataHandler
	default:
		return CategorySystem
	}
}

// metadata collects all attributes except the category into a JSON object.
func metadata(attrs []slog.Attr) string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Key == CategoryKey {
			continue
		}
		m[a.Key] = a.Value.String()
	}
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

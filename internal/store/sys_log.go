// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const createSysLog = `-- name: CreateSysLog :one
INSERT INTO sys_log (level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, level, category, message, metadata, created_at`

// CreateSysLogParams holds the values of a new sys_log row.
type CreateSysLogParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateSysLog inserts a log entry.
func (q *Queries) CreateSysLog(ctx context.Context, arg CreateSysLogParams) (SysLog, error) {
	row := q.db.QueryRowContext(ctx, createSysLog,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.Metadata,
		arg.CreatedAt,
	)
	var i SysLog
	err := row.Scan(
		&i.ID,
		&i.Level,
		&i.Category,
		&i.Message,
		&i.Metadata,
		&i.CreatedAt,
	)
	return i, err
}

const listSysLog = `-- name: ListSysLog :many
SELECT id, level, category, message, metadata, created_at FROM sys_log
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

// ListSysLogParams pages through the log.
type ListSysLogParams struct {
	Limit  int64
	Offset int64
}

// ListSysLog returns log entries, newest first.
func (q *Queries) ListSysLog(ctx context.Context, arg ListSysLogParams) ([]SysLog, error) {
	rows, err := q.db.QueryContext(ctx, listSysLog, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []SysLog
	for rows.Next() {
		var i SysLog
		if err := rows.Scan(
			&i.ID,
			&i.Level,
			&i.Category,
			&i.Message,
			&i.Metadata,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

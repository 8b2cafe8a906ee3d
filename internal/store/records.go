// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const recordColumns = `uid, table_name, pid, sys_language_uid, l10n_parent, fields, pointers, collections, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	err := row.Scan(
		&r.Uid,
		&r.TableName,
		&r.Pid,
		&r.SysLanguageUid,
		&r.L10nParent,
		&r.Fields,
		&r.Pointers,
		&r.Collections,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const createRecord = `-- name: CreateRecord :one
INSERT INTO records (table_name, pid, sys_language_uid, l10n_parent, fields, pointers, collections, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + recordColumns

// CreateRecordParams holds the values of a new records row.
type CreateRecordParams struct {
	TableName      string
	Pid            int64
	SysLanguageUid int64
	L10nParent     int64
	Fields         string
	Pointers       string
	Collections    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateRecord inserts a row and returns it with its allocated uid.
func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) (Record, error) {
	row := q.db.QueryRowContext(ctx, createRecord,
		arg.TableName,
		arg.Pid,
		arg.SysLanguageUid,
		arg.L10nParent,
		arg.Fields,
		arg.Pointers,
		arg.Collections,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanRecord(row)
}

const getRecord = `-- name: GetRecord :one
SELECT ` + recordColumns + ` FROM records
WHERE table_name = ? AND uid = ?`

// GetRecordParams identifies a row by table and uid.
type GetRecordParams struct {
	TableName string
	Uid       int64
}

// GetRecord returns sql.ErrNoRows if the row does not exist.
func (q *Queries) GetRecord(ctx context.Context, arg GetRecordParams) (Record, error) {
	row := q.db.QueryRowContext(ctx, getRecord, arg.TableName, arg.Uid)
	return scanRecord(row)
}

const recordExists = `-- name: RecordExists :one
SELECT COUNT(*) FROM records WHERE table_name = ? AND uid = ?`

// RecordExists returns 1 if the row exists, 0 otherwise.
func (q *Queries) RecordExists(ctx context.Context, arg GetRecordParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, recordExists, arg.TableName, arg.Uid)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateRecord = `-- name: UpdateRecord :execrows
UPDATE records
SET pid = ?, fields = ?, pointers = ?, collections = ?, version = version + 1, updated_at = ?
WHERE table_name = ? AND uid = ?`

// UpdateRecordParams holds the new values of a row. Language columns are
// never updated.
type UpdateRecordParams struct {
	Pid         int64
	Fields      string
	Pointers    string
	Collections string
	UpdatedAt   time.Time
	TableName   string
	Uid         int64
}

// UpdateRecord writes a row and bumps its version. It returns the number of
// affected rows.
func (q *Queries) UpdateRecord(ctx context.Context, arg UpdateRecordParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRecord,
		arg.Pid,
		arg.Fields,
		arg.Pointers,
		arg.Collections,
		arg.UpdatedAt,
		arg.TableName,
		arg.Uid,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listLocalizations = `-- name: ListLocalizations :many
SELECT uid FROM records
WHERE table_name = ? AND l10n_parent = ? AND sys_language_uid = ?
ORDER BY uid`

// ListLocalizationsParams selects the translations of one record.
type ListLocalizationsParams struct {
	TableName      string
	L10nParent     int64
	SysLanguageUid int64
}

// ListLocalizations returns the uids of all translations of a record into
// one language.
func (q *Queries) ListLocalizations(ctx context.Context, arg ListLocalizationsParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listLocalizations, arg.TableName, arg.L10nParent, arg.SysLanguageUid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		items = append(items, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRecordsByPid = `-- name: ListRecordsByPid :many
SELECT ` + recordColumns + ` FROM records
WHERE table_name = ? AND pid = ? AND sys_language_uid = ?
ORDER BY uid`

// ListRecordsByPidParams selects the records of a table stored on one page.
type ListRecordsByPidParams struct {
	TableName      string
	Pid            int64
	SysLanguageUid int64
}

// ListRecordsByPid returns the records of a table on a page in one language.
func (q *Queries) ListRecordsByPid(ctx context.Context, arg ListRecordsByPidParams) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, listRecordsByPid, arg.TableName, arg.Pid, arg.SysLanguageUid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countRecords = `-- name: CountRecords :one
SELECT COUNT(*) FROM records WHERE table_name = ?`

// CountRecords returns the number of rows of a table in all languages.
func (q *Queries) CountRecords(ctx context.Context, tableName string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecords, tableName)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "time"

// Record is a row of the records table. Fields, Pointers and Collections
// hold JSON objects.
type Record struct {
	Uid            int64     `json:"uid"`
	TableName      string    `json:"table_name"`
	Pid            int64     `json:"pid"`
	SysLanguageUid int64     `json:"sys_language_uid"`
	L10nParent     int64     `json:"l10n_parent"`
	Fields         string    `json:"fields"`
	Pointers       string    `json:"pointers"`
	Collections    string    `json:"collections"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SysLog is a row of the sys_log table.
type SysLog struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package datahandler

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
)

// runCommands executes the command map in registry table order, then uid
// order. Each localize command is one transaction of the engine.
func (h *DataHandler) runCommands(ctx context.Context, cmds CommandMap, res *Result) {
	var unknown []string
	for table := range cmds {
		if !h.reg.Has(table) {
			unknown = append(unknown, table)
		}
	}
	slices.Sort(unknown)
	for _, table := range unknown {
		h.fail(res, table, fmt.Errorf("%w: %q", schema.ErrUnknownTable, table))
	}

	for _, table := range h.reg.Tables() {
		rows, ok := cmds[table]
		if !ok {
			continue
		}
		for _, uid := range slices.Sorted(maps.Keys(rows)) {
			key := model.Key{Table: table, UID: uid}
			cmd := rows[uid]
			if cmd.Localize == 0 {
				h.fail(res, key.String(), fmt.Errorf("%w: unsupported command", record.ErrValidation))
				continue
			}

			locUID, err := h.engine.Localize(ctx, table, uid, cmd.Localize)
			if err != nil {
				h.fail(res, key.String(), err)
				continue
			}
			res.Localized[key] = locUID
		}
	}
}

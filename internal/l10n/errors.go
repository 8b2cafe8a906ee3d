// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package l10n

import (
	"errors"
	"strings"

	"github.com/olegiv/ocms-l10n/internal/model"
)

// ErrCycle matches every *CycleError.
var ErrCycle = errors.New("relation cycle")

// errPlanChanged aborts an attempt whose subtree grew after locking.
var errPlanChanged = errors.New("localization plan changed while locking")

// CycleError is returned when the child collections of a subtree lead back
// to a record that is still being walked.
type CycleError struct {
	// Path lists the records from the first visit of the repeated record
	// to its second visit.
	Path []model.Key
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = k.String()
	}
	return "relation cycle: " + strings.Join(parts, " -> ")
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package datahandler

import (
	"go.uber.org/multierr"

	"github.com/olegiv/ocms-l10n/internal/model"
)

// Result is the outcome of one Process call. Writes listed here are
// committed even if the batch failed.
type Result struct {
	// Substitutions maps every inserted placeholder to its uid.
	Substitutions map[string]int64 `json:"substitutions"`
	Inserted      []model.Key      `json:"inserted"`
	Updated       []model.Key      `json:"updated"`
	// Localized maps every localized record to its translation.
	Localized map[model.Key]int64 `json:"-"`

	errs error
}

func newResult() *Result {
	return &Result{
		Substitutions: make(map[string]int64),
		Localized:     make(map[model.Key]int64),
	}
}

func (r *Result) addError(err error) {
	r.errs = multierr.Append(r.errs, err)
}

// Failed returns true if any entry of the batch failed.
func (r *Result) Failed() bool {
	return r.errs != nil
}

// Err returns all errors of the batch combined, or nil.
func (r *Result) Err() error {
	return r.errs
}

// Errors returns the errors of the batch in the order they occurred.
func (r *Result) Errors() []error {
	return multierr.Errors(r.errs)
}

// ErrorLog returns the messages of all errors of the batch.
func (r *Result) ErrorLog() []string {
	errs := r.Errors()
	log := make([]string, len(errs))
	for i, err := range errs {
		log[i] = err.Error()
	}
	return log
}

// Subst returns the uid a placeholder was inserted under.
func (r *Result) Subst(placeholder string) (int64, bool) {
	uid, ok := r.Substitutions[placeholder]
	return uid, ok
}

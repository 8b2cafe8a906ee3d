// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Language is a site language. ID 0 is the default language.
type Language struct {
	ID    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	// ISO is a BCP 47 tag such as "en" or "de-CH".
	ISO string `json:"iso" yaml:"iso"`
}

// IsDefault returns true if this is the default language.
func (l *Language) IsDefault() bool {
	return l.ID == DefaultLanguage
}

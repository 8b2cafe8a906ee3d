// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package datahandler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks data map keys of records to be inserted.
const PlaceholderPrefix = "NEW"

// ErrDanglingReference is returned for placeholders that no record of the
// batch was inserted under.
var ErrDanglingReference = errors.New("dangling reference")

// Values holds the field values of one data map entry. Relation values may
// be a uid, a placeholder, a comma separated list of both, or a list.
type Values map[string]any

// DataMap is table -> uid or placeholder -> field values.
type DataMap map[string]map[string]Values

// Command is one command map entry.
type Command struct {
	Localize int64 `json:"localize,omitempty" yaml:"localize,omitempty"`
}

// CommandMap is table -> uid -> command.
type CommandMap map[string]map[int64]Command

// NewPlaceholder returns a fresh placeholder id.
func NewPlaceholder() string {
	return PlaceholderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsPlaceholder reports whether s is a placeholder id.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, PlaceholderPrefix)
}

// ref is one relation value: a uid or a placeholder.
type ref struct {
	uid         int64
	placeholder string
}

// parseRefs flattens a relation value into its references.
func parseRefs(v any) ([]ref, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int:
		return uidRef(int64(val)), nil
	case int64:
		return uidRef(val), nil
	case uint64:
		return uidRef(int64(val)), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("invalid uid %v", val)
		}
		return uidRef(int64(val)), nil
	case string:
		var refs []ref
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "":
			case IsPlaceholder(part):
				refs = append(refs, ref{placeholder: part})
			default:
				uid, err := strconv.ParseInt(part, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid reference %q", part)
				}
				refs = append(refs, uidRef(uid)...)
			}
		}
		return refs, nil
	case []any:
		var refs []ref
		for _, item := range val {
			r, err := parseRefs(item)
			if err != nil {
				return nil, err
			}
			refs = append(refs, r...)
		}
		return refs, nil
	case []string:
		return parseRefs(strings.Join(val, ","))
	case []int64:
		var refs []ref
		for _, uid := range val {
			refs = append(refs, uidRef(uid)...)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported relation value %T", v)
	}
}

// uidRef drops 0, which clears a relation.
func uidRef(uid int64) []ref {
	if uid == 0 {
		return nil
	}
	return []ref{{uid: uid}}
}

// scalar converts a field value to its stored string form.
func scalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int, int64, uint64:
		return fmt.Sprint(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}

// intValue converts a pid value.
func intValue(v any) (int64, string, error) {
	refs, err := parseRefs(v)
	if err != nil {
		return 0, "", err
	}
	switch len(refs) {
	case 0:
		return 0, "", nil
	case 1:
		return refs[0].uid, refs[0].placeholder, nil
	default:
		return 0, "", fmt.Errorf("expected a single value, got %d", len(refs))
	}
}

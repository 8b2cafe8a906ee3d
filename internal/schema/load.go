// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML layout of a schema file.
type document struct {
	Tables []Table `yaml:"tables"`
}

// Load reads table declarations from YAML and builds a registry.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("%w: no tables declared", ErrInvalid)
	}
	return NewRegistry(doc.Tables...)
}

// LoadFile reads a YAML schema file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening schema file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Marshal writes the declarations of a registry as YAML.
func (r *Registry) Marshal(w io.Writer) error {
	doc := document{Tables: make([]Table, 0, len(r.order))}
	for _, name := range r.order {
		doc.Tables = append(doc.Tables, *r.tables[name])
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return enc.Close()
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package datahandler

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Batch is a data map and a command map read from a file.
type Batch struct {
	Data DataMap    `yaml:"data"`
	Cmd  CommandMap `yaml:"cmd"`
}

// ParseBatch reads a YAML batch:
//
//	data:
//	  tx_example_wall:
//	    NEWwall: {pid: 1, title: Wall, tt_content: 12}
//	cmd:
//	  tt_content:
//	    12: {localize: 1}
func ParseBatch(r io.Reader) (*Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return &b, nil
		}
		return nil, fmt.Errorf("parsing batch: %w", err)
	}
	return &b, nil
}

// ParseBatchFile reads a YAML batch from a file.
func ParseBatchFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseBatch(f)
}

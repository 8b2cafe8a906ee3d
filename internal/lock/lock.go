// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lock serializes work on overlapping sets of keys, inside one
// process or across processes sharing a Redis server.
package lock

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Unlock releases the keys acquired by one Lock call. It is safe to call
// more than once.
type Unlock func()

// Locker acquires exclusive locks on keys. Keys are always acquired in
// sorted order so that callers locking overlapping sets cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
	Close() error
}

// normalize sorts keys and removes duplicates.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Options selects and configures a Locker.
type Options struct {
	// RedisURL enables the Redis locker. Empty means in-process locking.
	RedisURL string
	Prefix   string
	TTL      time.Duration
}

// New returns a RedisLocker if opts.RedisURL is set and a MemoryLocker
// otherwise.
func New(opts Options, logger *slog.Logger) (Locker, error) {
	if opts.RedisURL == "" {
		logger.Debug("using in-process locker")
		return NewMemoryLocker(), nil
	}

	ropts := DefaultRedisLockerOptions()
	ropts.URL = opts.RedisURL
	if opts.Prefix != "" {
		ropts.Prefix = opts.Prefix
	}
	if opts.TTL > 0 {
		ropts.TTL = opts.TTL
	}
	l, err := NewRedisLocker(ropts, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("using redis locker", "prefix", ropts.Prefix, "ttl", ropts.TTL)
	return l, nil
}

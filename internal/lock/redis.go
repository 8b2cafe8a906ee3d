// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes a key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL of a key only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis
// server and prefix.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// RedisLockerOptions configures the Redis locker.
type RedisLockerOptions struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to all keys (e.g., "ocms-l10n:lock:")
	Prefix string

	// TTL bounds how long a crashed holder can block others. Live holders
	// extend it every TTL/3 until they unlock.
	TTL time.Duration

	// RetryInterval is the pause between attempts on a held key
	RetryInterval time.Duration

	// ConnectTimeout is the timeout for establishing a connection
	ConnectTimeout time.Duration
}

// DefaultRedisLockerOptions returns sensible defaults.
func DefaultRedisLockerOptions() RedisLockerOptions {
	return RedisLockerOptions{
		Prefix:         "ocms-l10n:lock:",
		TTL:            30 * time.Second,
		RetryInterval:  25 * time.Millisecond,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewRedisLocker connects to Redis and returns a locker.
func NewRedisLocker(opts RedisLockerOptions, logger *slog.Logger) (*RedisLocker, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	defaults := DefaultRedisLockerOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		retry:  opts.RetryInterval,
		logger: logger,
	}, nil
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	release := func() {
		// Unlock must work after the caller's context is done.
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := unlockScript.Run(uctx, l.client, []string{held[i]}, token).Err(); err != nil {
				l.logger.Warn("failed to release lock", "key", held[i], "error", err)
			}
		}
		held = held[:0]
	}

	for _, key := range keys {
		rk := l.prefix + key
		if err := l.acquire(ctx, rk, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, rk)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(stop, done, slices.Clone(held), token)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			release()
		})
	}, nil
}

// keepAlive extends the TTL of keys every TTL/3 until stop is closed.
func (l *RedisLocker) keepAlive(stop <-chan struct{}, done chan<- struct{}, keys []string, token string) {
	defer close(done)

	interval := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		for _, key := range keys {
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				l.logger.Warn("failed to extend lock", "key", key, "error", err)
				continue
			}
			if n == 0 {
				l.logger.Error("lock expired while held", "key", key, "ttl", l.ttl)
			}
		}
		cancel()
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

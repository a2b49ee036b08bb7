// Package cache holds tool results keyed by tool name and resolved
// arguments. Stores keep opaque bytes; ResultCache layers per-operation
// timeouts and degrade-to-no-op behaviour on top of any Store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by administrative paths when no store can be
// reached. Read and write paths never surface it.
var ErrUnavailable = errors.New("cache: store unavailable")

// ErrBadPattern rejects a delete pattern with an unterminated character class.
var ErrBadPattern = errors.New("cache: unterminated [ in pattern")

// Store is a TTL-capable key-value backend.
type Store interface {
	// Get returns the value stored under key. A missing or expired key is
	// reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes every key matching the glob pattern and returns how
	// many were removed.
	Delete(ctx context.Context, pattern string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a Store. ResultCache calls it lazily and again after a
// degraded cooldown expires.
type Dialer func(ctx context.Context) (Store, error)

package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultOpTimeout = 500 * time.Millisecond
	DefaultCooldown  = 30 * time.Second
)

// Options configure a ResultCache.
type Options struct {
	// OpTimeout bounds every Get, Set and Delete, and each dial.
	OpTimeout time.Duration
	// Cooldown is how long the cache stays a no-op after a store failure
	// before the next operation redials.
	Cooldown time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// ResultCache is the cache handle shared by every dispatch. A nil
// *ResultCache is a valid, permanently empty cache.
type ResultCache struct {
	dial   Dialer
	opts   Options
	logger *slog.Logger

	mu            sync.Mutex
	store         Store
	degradedUntil time.Time
	dialing       bool
	closed        bool
}

// New returns a cache that connects lazily through dial.
func New(dial Dialer, opts Options) *ResultCache {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{dial: dial, opts: opts, logger: logger}
}

// NewWithStore wraps an already open store. Redial after a failure returns
// the same store, so Redis callers should prefer New with RedisDialer.
func NewWithStore(store Store, opts Options) *ResultCache {
	c := New(func(context.Context) (Store, error) { return store, nil }, opts)
	c.store = store
	return c
}

// Get returns the cached bytes for key. Any store failure is a miss.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	store := c.handle(ctx)
	if store == nil {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	value, ok, err := store.Get(opCtx, key)
	if err != nil {
		c.degrade(store, "get", err)
		return nil, false
	}
	return value, ok
}

// Set writes value under key. Failures are logged and dropped.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	store := c.handle(ctx)
	if store == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	if err := store.Set(opCtx, key, value, ttl); err != nil {
		c.degrade(store, "set", err)
	}
}

// Delete removes keys matching pattern. Unlike reads and writes it reports
// failures, since it is only reached from administrative paths.
func (c *ResultCache) Delete(ctx context.Context, pattern string) (int, error) {
	if err := ValidatePattern(pattern); err != nil {
		return 0, err
	}
	store := c.handle(ctx)
	if store == nil {
		return 0, ErrUnavailable
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	n, err := store.Delete(opCtx, pattern)
	if err != nil {
		c.degrade(store, "delete", err)
		return n, err
	}
	return n, nil
}

// Degraded reports whether the cache is currently a no-op.
func (c *ResultCache) Degraded() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store == nil && c.opts.Now().Before(c.degradedUntil)
}

// Close releases the underlying store.
func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// handle returns the live store, dialing if the cooldown has passed. Only
// one caller dials at a time; the others see a miss instead of waiting.
func (c *ResultCache) handle(ctx context.Context) Store {
	if c == nil || c.dial == nil {
		return nil
	}
	c.mu.Lock()
	if c.store != nil || c.closed || c.dialing || c.opts.Now().Before(c.degradedUntil) {
		store := c.store
		c.mu.Unlock()
		return store
	}
	c.dialing = true
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	store, err := c.dial(dialCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = false
	if err != nil {
		c.degradedUntil = c.opts.Now().Add(c.opts.Cooldown)
		c.logger.Warn("cache unavailable; continuing without it", "error", err, "retry_after", c.opts.Cooldown)
		return nil
	}
	if c.closed {
		_ = store.Close()
		return nil
	}
	c.store = store
	return store
}

func (c *ResultCache) degrade(store Store, op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != store {
		return
	}
	c.logger.Warn("cache operation failed; degrading", "op", op, "error", err, "retry_after", c.opts.Cooldown)
	_ = store.Close()
	c.store = nil
	c.degradedUntil = c.opts.Now().Add(c.opts.Cooldown)
}

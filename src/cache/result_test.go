package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*MemoryStore
	fail   atomic.Bool
	closed atomic.Int32
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.fail.Load() {
		return nil, false, errors.New("connection reset")
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.fail.Load() {
		return errors.New("connection reset")
	}
	return f.MemoryStore.Set(ctx, key, value, ttl)
}

func (f *flakyStore) Close() error {
	f.closed.Add(1)
	return nil
}

func TestResultCache_NilIsNoop(t *testing.T) {
	var c *ResultCache
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	_, err := c.Delete(ctx, "*")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, c.Degraded())
	assert.NoError(t, c.Close())
}

func TestResultCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(NewMemoryStore(8), Options{})

	c.Set(ctx, "tool:get_meals:{}", []byte(`{"meals":[]}`), time.Minute)
	got, ok := c.Get(ctx, "tool:get_meals:{}")
	require.True(t, ok)
	assert.Equal(t, `{"meals":[]}`, string(got))
	assert.False(t, c.Degraded())
}

func TestResultCache_DegradesThenReconnects(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &flakyStore{MemoryStore: NewMemoryStore(8)}

	var dials atomic.Int32
	c := New(func(context.Context) (Store, error) {
		dials.Add(1)
		return store, nil
	}, Options{Cooldown: time.Minute, Now: func() time.Time { return now }})

	c.Set(ctx, "k", []byte("v"), time.Hour)
	require.Equal(t, int32(1), dials.Load())

	store.fail.Store(true)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "failed get must read as a miss")
	assert.True(t, c.Degraded())
	assert.Equal(t, int32(1), store.closed.Load())

	store.fail.Store(false)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "cache stays a no-op during cooldown")
	assert.Equal(t, int32(1), dials.Load())

	now = now.Add(2 * time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, int32(2), dials.Load())
}

func TestResultCache_DialFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := New(func(context.Context) (Store, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, Options{})

	c.Set(ctx, "k", []byte("v"), time.Hour)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, c.Degraded())
}

func TestResultCache_SlowDialDoesNotBlockOtherCallers(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	dialStarted := make(chan struct{})
	var dials atomic.Int32
	c := New(func(context.Context) (Store, error) {
		if dials.Add(1) == 1 {
			close(dialStarted)
		}
		<-release
		return NewMemoryStore(8), nil
	}, Options{OpTimeout: time.Minute})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Set(ctx, "k", []byte("v"), time.Hour)
	}()
	<-dialStarted

	start := time.Now()
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "callers arriving mid-dial see a miss")
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, c.Degraded())

	close(release)
	wg.Wait()
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, int32(1), dials.Load())
}

func TestResultCache_CloseDuringDialDropsStore(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	dialStarted := make(chan struct{})
	store := &flakyStore{MemoryStore: NewMemoryStore(8)}
	c := New(func(context.Context) (Store, error) {
		close(dialStarted)
		<-release
		return store, nil
	}, Options{OpTimeout: time.Minute})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Set(ctx, "k", []byte("v"), time.Hour)
	}()
	<-dialStarted
	require.NoError(t, c.Close())
	close(release)
	<-done

	assert.Equal(t, int32(1), store.closed.Load())
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestResultCache_OpTimeout(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(&slowStore{MemoryStore: NewMemoryStore(1)}, Options{OpTimeout: 10 * time.Millisecond})

	start := time.Now()
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

type slowStore struct{ *MemoryStore }

func (s *slowStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

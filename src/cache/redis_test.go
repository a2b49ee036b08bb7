package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return srv, store
}

func TestRedisStore_GetSetTTL(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "tool:get_meals:{}", []byte(`{"meals":[]}`), 30*time.Minute))
	assert.True(t, srv.Exists(DefaultKeyPrefix+"tool:get_meals:{}"))

	got, ok, err := store.Get(ctx, "tool:get_meals:{}")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"meals":[]}`, string(got))

	srv.FastForward(31 * time.Minute)
	_, ok, err = store.Get(ctx, "tool:get_meals:{}")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DeletePattern(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)

	for _, k := range []string{"tool:get_notices:{}", `tool:get_notices:{"category":"academic"}`, "tool:get_meals:{}"} {
		require.NoError(t, store.Set(ctx, k, []byte("x"), time.Hour))
	}
	n, err := store.Delete(ctx, Pattern("get_notices"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := store.Get(ctx, "tool:get_meals:{}")
	assert.True(t, ok)
}

func TestRedisStore_ServerLossDegradesCache(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c := New(RedisDialer(RedisConfig{URL: "redis://" + srv.Addr(), DialTimeout: 100 * time.Millisecond}),
		Options{OpTimeout: 200 * time.Millisecond})
	defer c.Close()

	c.Set(ctx, "k", []byte("v"), time.Hour)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	srv.Close()
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, c.Degraded())
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

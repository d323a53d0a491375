package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *cache.Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, cache.NewRedis(client, "feeds:", time.Hour, logger.NewNop())
}

func TestRedis_SetGetWithPrefix(t *testing.T) {
	t.Parallel()

	mr, c := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.CanonicalKey("bbc"), []byte(`{"feed":"bbc"}`), 0))

	assert.True(t, mr.Exists("feeds:feed.bbc.canonical"))
	assert.Equal(t, time.Hour, mr.TTL("feeds:feed.bbc.canonical"))

	val, ok, err := c.Get(ctx, cache.CanonicalKey("bbc"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"feed":"bbc"}`, string(val))

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Expiry(t *testing.T) {
	t.Parallel()

	mr, c := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Second))
	mr.FastForward(6 * time.Second)

	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRedis_KeysAndDelete(t *testing.T) {
	t.Parallel()

	mr, c := newMiniRedis(t)
	ctx := context.Background()

	for _, src := range []string{"c", "a", "b"} {
		require.NoError(t, c.Set(ctx, cache.CanonicalKey(src), []byte("{}"), 0))
		require.NoError(t, c.Set(ctx, cache.RefreshKey(src), []byte("1"), 0))
	}
	require.NoError(t, mr.Set("other:feed.x.canonical", "{}"))

	keys, err := c.Keys(ctx, cache.CanonicalPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed.a.canonical", "feed.b.canonical", "feed.c.canonical"}, keys)

	require.NoError(t, c.Delete(ctx, cache.CanonicalKey("a")))
	keys, err = c.Keys(ctx, cache.CanonicalPattern)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRedis_ConnectionFailure(t *testing.T) {
	t.Parallel()

	mr, c := newMiniRedis(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)

	err = c.Set(context.Background(), "k", []byte("v"), 0)
	require.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	_, err := cache.NewRedisClient(cache.RedisConfig{})
	require.ErrorIs(t, err, cache.ErrEmptyAddress)

	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

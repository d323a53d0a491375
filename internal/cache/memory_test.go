package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemory_SetGetExpire(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := cache.NewMemory(time.Minute, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	val, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), val)

	clock.Advance(10 * time.Second)

	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire at its ttl")

	has, err := c.Has(ctx, "b")
	require.NoError(t, err)
	assert.True(t, has, "zero ttl falls back to the default ttl")

	clock.Advance(time.Minute)
	has, err = c.Has(ctx, "b")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory(0)
	ctx := context.Background()
	src := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", src, 0))
	src[0] = 'x'

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(val))

	val[1] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_KeysPattern(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	c := cache.NewMemory(time.Hour, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.CanonicalKey("bbc"), []byte("{}"), 0))
	require.NoError(t, c.Set(ctx, cache.CanonicalKey("axios"), []byte("{}"), 0))
	require.NoError(t, c.Set(ctx, cache.RefreshKey("bbc"), []byte("1"), 0))
	require.NoError(t, c.Set(ctx, cache.CanonicalKey("stale"), []byte("{}"), time.Second))

	clock.Advance(2 * time.Second)

	keys, err := c.Keys(ctx, cache.CanonicalPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed.axios.canonical", "feed.bbc.canonical"}, keys)

	_, err = c.Keys(ctx, "[")
	require.Error(t, err)
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "missing"))

	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, c.Close())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := cache.CanonicalKey(string(rune('a' + n)))
			for range 100 {
				_ = c.Set(ctx, key, []byte("v"), 0)
				_, _, _ = c.Get(ctx, key)
				_, _ = c.Keys(ctx, "feed.*")
			}
		}(i)
	}
	wg.Wait()

	keys, err := c.Keys(ctx, cache.CanonicalPattern)
	require.NoError(t, err)
	assert.Len(t, keys, 16)
}

func TestOpen_Backends(t *testing.T) {
	t.Parallel()

	c, err := cache.Open(cache.Config{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)

	_, err = cache.Open(cache.Config{Backend: "memcached"}, nil)
	require.ErrorIs(t, err, cache.ErrUnknownBackend)

	_, err = cache.Open(cache.Config{Backend: "redis"}, nil)
	require.ErrorIs(t, err, cache.ErrEmptyAddress)
}

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

func TestRedis_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	c := cache.NewRedis(client, "it:", time.Minute, logger.NewNop())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(ctx, cache.CanonicalKey("alpha"), []byte(`{"feed":"alpha","items":[]}`), 0))
	keys, err := c.Keys(ctx, cache.CanonicalPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed.alpha.canonical"}, keys)
}

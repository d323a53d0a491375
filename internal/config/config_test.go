package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, 3*time.Minute, cfg.Feeds.DefaultTTL)
	assert.Equal(t, 15*time.Second, cfg.Feeds.FetchTimeout)
	assert.Equal(t, "*/2 * * * *", cfg.Scheduler.Schedule)
	assert.True(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 10*time.Minute, cfg.Assembler.ResponseTTL)
	assert.Equal(t, "static", cfg.Subscriptions.Backend)
	assert.False(t, cfg.Export.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Equal(t, cfg.Feeds.DefaultTTL, cfg.Feeds.Refresh().DefaultTTL)
	assert.Equal(t, cfg.Scheduler.Schedule, cfg.Scheduler.Refresh().Schedule)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	t.Setenv("FEEDS_FEEDS_DEFAULT_TTL", "5m")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
cache:
  backend: redis
  redis:
    address: redis:6379
    key_prefix: "feeds:"
scheduler:
  schedule: "@every 30s"
  lock:
    enabled: true
subscriptions:
  static:
    demo:
      sources: [bbc, npr]
      category_ranking:
        tech: 2
export:
  enabled: true
  sink: elasticsearch
`)))
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, "feeds:", cfg.Cache.Redis.KeyPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Feeds.DefaultTTL)
	assert.True(t, cfg.Scheduler.Lock.Enabled)
	assert.Equal(t, []string{"bbc", "npr"}, cfg.Subscriptions.Static["demo"].Sources)
	assert.InDelta(t, 2.0, cfg.Subscriptions.Static["demo"].CategoryRanking["tech"], 0)
	assert.Equal(t, "feeds_training_data", cfg.Export.Elasticsearch.Index)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		set   map[string]any
		field string
	}{
		{name: "log level", set: map[string]any{"logger.level": "loud"}, field: "logger.level"},
		{name: "cache backend", set: map[string]any{"cache.backend": "memcached"}, field: "cache.backend"},
		{name: "redis address", set: map[string]any{"cache.backend": "redis", "cache.redis.address": ""}, field: "cache.redis.address"},
		{name: "source ttl", set: map[string]any{"feeds.default_ttl": "0s"}, field: "feeds.default_ttl"},
		{name: "concurrency", set: map[string]any{"feeds.max_concurrency": 0}, field: "feeds.max_concurrency"},
		{name: "schedule", set: map[string]any{"scheduler.schedule": "whenever"}, field: "scheduler.schedule"},
		{name: "lock without redis", set: map[string]any{"scheduler.lock.enabled": true}, field: "scheduler.lock.enabled"},
		{name: "subscriptions backend", set: map[string]any{"subscriptions.backend": "ldap"}, field: "subscriptions.backend"},
		{name: "postgres dbname", set: map[string]any{"subscriptions.backend": "postgres"}, field: "subscriptions.postgres"},
		{name: "export sink", set: map[string]any{"export.enabled": true, "export.sink": "s3"}, field: "export.sink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}

			_, err := config.Load(v)
			require.Error(t, err)
			var vErr *config.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

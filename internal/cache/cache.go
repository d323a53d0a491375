// Package cache provides the TTL key-value store that holds canonical feeds,
// refresh timestamps and assembled response snapshots.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown cache backend")

//go:generate mockgen -source=cache.go -destination=../../testutils/mocks/cache/cache.go -package=cache

// Cache is a key-value store with per-entry expiry. Implementations are
// safe for concurrent use and never return expired entries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	// Keys lists live keys matching a glob pattern where * matches any run
	// of characters.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend    string        `mapstructure:"backend"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// Open builds the configured backend.
func Open(cfg Config, log logger.Logger) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemory(cfg.DefaultTTL), nil
	case BackendRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return NewRedis(client, cfg.Redis.KeyPrefix, cfg.DefaultTTL, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func effectiveTTL(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTTL
}

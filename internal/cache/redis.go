package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	scanBatchSize     = 100
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Redis is a Cache backed by a Redis server. Keys are namespaced by prefix.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     logger.Logger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, defaultTTL time.Duration, log logger.Logger) *Redis {
	return &Redis{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     log.With(logger.Component("cache.redis")),
	}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("Redis error reading key",
			logger.String("redis_key", r.key(key)),
			logger.Error(err),
		)
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ttl = effectiveTTL(ttl, r.defaultTTL)
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.logger.Error("Redis error writing key",
			logger.String("redis_key", r.key(key)),
			logger.Duration("ttl", ttl),
			logger.Error(err),
		)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n == 1, nil
}

// Keys walks the keyspace with SCAN rather than KEYS so large databases are
// not blocked.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	match := r.key(pattern)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			r.logger.Error("Redis error scanning for keys",
				logger.String("pattern", match),
				logger.Error(err),
			)
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, r.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return dedupeSorted(out), nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// SCAN may return a key more than once.
func dedupeSorted(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

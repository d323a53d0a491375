// Package coordination provides the Redis lock that keeps refresh ticks
// exclusive across service instances.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockKey is the Redis key guarding refresh ticks.
	DefaultLockKey = "feeds:tick:lock"
	// DefaultLockTTL bounds how long a crashed holder can block other instances.
	DefaultLockTTL = 5 * time.Minute
)

// ErrLockNotHeld is returned when releasing a lock this instance does not own.
var ErrLockNotHeld = errors.New("lock not held")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// LockConfig holds configuration for a TickLock.
type LockConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

// TickLock is a non-blocking Redis mutex. Each acquisition uses a fresh
// token so a stale release can never drop another holder's lock.
type TickLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewTickLock creates a lock on cfg.Key.
func NewTickLock(client *redis.Client, cfg LockConfig) *TickLock {
	if cfg.Key == "" {
		cfg.Key = DefaultLockKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLockTTL
	}
	return &TickLock{client: client, key: cfg.Key, ttl: cfg.TTL}
}

// TryLock attempts to acquire the lock without blocking.
func (l *TickLock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Unlock releases the lock if this instance holds it.
func (l *TickLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Package subscriptions resolves a user to the sources they follow and their
// category preferences.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUserNotFound is returned for unknown users.
var ErrUserNotFound = errors.New("user not found")

// ErrUnknownBackend is returned when the configured backend does not exist.
var ErrUnknownBackend = errors.New("unknown subscriptions backend")

// Profile is what the feed endpoint needs to know about a user.
type Profile struct {
	UserID          string             `json:"userId"`
	Sources         []string           `json:"sources"`
	CategoryRanking map[string]float64 `json:"categoryRanking"`
}

// Store looks up profiles.
type Store interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Config selects and configures the backend.
type Config struct {
	Backend  string                   `mapstructure:"backend"`
	Static   map[string]StaticProfile `mapstructure:"static"`
	Postgres PostgresConfig           `mapstructure:"postgres"`
}

// Open builds the configured store. The returned closer releases backend
// resources.
func Open(cfg Config) (Store, io.Closer, error) {
	switch cfg.Backend {
	case "", "static":
		return NewStatic(cfg.Static), nopCloser{}, nil
	case "postgres":
		db, err := NewPostgresConnection(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(db), db, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

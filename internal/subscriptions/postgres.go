package subscriptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second

	// pgInvalidText is raised when a user id is not a valid uuid.
	pgInvalidText = "22P02"
)

// PostgresConfig holds connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"` //nolint:gosec // DB connection config
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// NewPostgresConnection opens a pooled connection and verifies it.
func NewPostgresConnection(cfg PostgresConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// Postgres reads profiles from the accounts, subscriptions and feeds tables.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres creates a Postgres store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type preferences struct {
	CategoryRanking map[string]float64 `json:"categoryRanking"`
}

// Profile implements Store.
func (p *Postgres) Profile(ctx context.Context, userID string) (Profile, error) {
	var prefsJSON []byte
	query := `SELECT preferences FROM accounts WHERE id = $1`

	if err := p.db.GetContext(ctx, &prefsJSON, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return Profile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return Profile{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	var prefs preferences
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
			return Profile{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	if prefs.CategoryRanking == nil {
		prefs.CategoryRanking = map[string]float64{}
	}

	sources := []string{}
	query = `
		SELECT f.name
		FROM subscriptions s
		JOIN feeds f ON f.id = s.feed_id
		WHERE s.subscriber_id = $1
		ORDER BY s.created_at, f.name
	`
	if err := p.db.SelectContext(ctx, &sources, query, userID); err != nil {
		return Profile{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return Profile{UserID: userID, Sources: sources, CategoryRanking: prefs.CategoryRanking}, nil
}

func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidText
}

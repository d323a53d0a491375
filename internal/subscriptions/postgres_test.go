package subscriptions_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

const userID = "5b8a3f0e-8f9c-4c1e-9e8a-2f1d4b6c7a90"

func newPostgres(t *testing.T) (*subscriptions.Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return subscriptions.NewPostgres(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgres_Profile(t *testing.T) {
	t.Parallel()

	store, mock := newPostgres(t)

	mock.ExpectQuery("SELECT preferences FROM accounts").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).
			AddRow([]byte(`{"categoryRanking":{"tech":3,"sports":1},"theme":"dark"}`)))
	mock.ExpectQuery("SELECT f.name FROM subscriptions s JOIN feeds f").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("bbc").AddRow("wired_top"))

	got, err := store.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.Profile{
		UserID:          userID,
		Sources:         []string{"bbc", "wired_top"},
		CategoryRanking: map[string]float64{"tech": 3, "sports": 1},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ProfileWithoutPreferences(t *testing.T) {
	t.Parallel()

	store, mock := newPostgres(t)

	mock.ExpectQuery("SELECT preferences FROM accounts").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow(nil))
	mock.ExpectQuery("SELECT f.name FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	got, err := store.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, got.Sources)
	assert.NotNil(t, got.Sources)
	assert.Empty(t, got.CategoryRanking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ProfileErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		setupMock    func(mock sqlmock.Sqlmock)
		wantNotFound bool
	}{
		{
			name: "unknown user",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT preferences FROM accounts").WillReturnError(sql.ErrNoRows)
			},
			wantNotFound: true,
		},
		{
			name: "malformed user id",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT preferences FROM accounts").
					WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
			},
			wantNotFound: true,
		},
		{
			name: "database failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT preferences FROM accounts").WillReturnError(sql.ErrConnDone)
			},
		},
		{
			name: "corrupt preferences",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT preferences FROM accounts").
					WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow([]byte("{")))
			},
		},
		{
			name: "subscription query failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT preferences FROM accounts").
					WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow([]byte("{}")))
				mock.ExpectQuery("SELECT f.name FROM subscriptions").WillReturnError(sql.ErrConnDone)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, mock := newPostgres(t)
			tc.setupMock(mock)

			_, err := store.Profile(context.Background(), userID)
			require.Error(t, err)
			assert.Equal(t, tc.wantNotFound, errors.Is(err, subscriptions.ErrUserNotFound))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

package subscriptions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

func TestStatic_Profile(t *testing.T) {
	t.Parallel()

	store := subscriptions.NewStatic(map[string]subscriptions.StaticProfile{
		"alice": {Sources: []string{"bbc", "npr"}, CategoryRanking: map[string]float64{"tech": 2}},
		"bob":   {Sources: []string{"wired_top"}},
	})

	got, err := store.Profile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.Profile{
		UserID:          "alice",
		Sources:         []string{"bbc", "npr"},
		CategoryRanking: map[string]float64{"tech": 2},
	}, got)

	got, err = store.Profile(context.Background(), "bob")
	require.NoError(t, err)
	assert.NotNil(t, got.CategoryRanking)

	_, err = store.Profile(context.Background(), "carol")
	require.ErrorIs(t, err, subscriptions.ErrUserNotFound)
}

func TestOpen_Backends(t *testing.T) {
	t.Parallel()

	store, closer, err := subscriptions.Open(subscriptions.Config{})
	require.NoError(t, err)
	assert.IsType(t, &subscriptions.Static{}, store)
	require.NoError(t, closer.Close())

	_, _, err = subscriptions.Open(subscriptions.Config{Backend: "ldap"})
	require.ErrorIs(t, err, subscriptions.ErrUnknownBackend)
}

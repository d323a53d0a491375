package logger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

func TestNew_DefaultsApplied(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.With(logger.Component("test")).Debug("hidden at info level")
}

func TestObserved_RecordsFields(t *testing.T) {
	t.Parallel()

	l, logs := logger.NewObserved(zapcore.InfoLevel)
	l.With(logger.Component("refresh"), logger.TickID("tick-7")).Warn("source skipped",
		logger.Source("alpha"),
		logger.Error(errors.New("boom")),
	)
	l.Debug("dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "source skipped", entries[0].Message)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "refresh", ctxMap["component"])
	assert.Equal(t, "alpha", ctxMap["source"])
	assert.Equal(t, "tick-7", ctxMap["tick_id"])
	assert.Equal(t, "boom", ctxMap["error"])
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	stored, _ := logger.NewObserved(zapcore.InfoLevel)
	ctx := logger.WithContext(context.Background(), stored)
	assert.Same(t, stored, logger.FromContext(ctx, nil))

	fallback, _ := logger.NewObserved(zapcore.DebugLevel)
	assert.Same(t, fallback, logger.FromContext(context.Background(), fallback))
	assert.Equal(t, logger.NewNop(), logger.FromContext(context.Background(), nil))
}

package refresh_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdrefresh "github.com/jonesrussell/north-cloud/feeds/cmd/refresh"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
)

type stubTicker struct {
	report *refresh.TickReport
	err    error
	forced []string
	ticks  int
}

func (s *stubTicker) Tick(context.Context) (*refresh.TickReport, error) {
	s.ticks++
	return s.report, s.err
}

func (s *stubTicker) ForceRefresh(_ context.Context, names []string) (*refresh.TickReport, error) {
	s.forced = names
	return s.report, s.err
}

func sampleReport() *refresh.TickReport {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &refresh.TickReport{
		ID:         "tick-1",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Updated:    []string{"alpha"},
		Skipped:    map[string]refresh.Outcome{"beta": refresh.OutcomeNotDue},
		Failed:     map[string]string{"gamma": "cache write: boom"},
		Results: []refresh.SourceResult{
			{Source: "alpha", Outcome: refresh.OutcomeUpdated, Items: 3, Dropped: 1},
			{Source: "beta", Outcome: refresh.OutcomeNotDue},
			{Source: "gamma", Outcome: refresh.OutcomeFailed, Error: "cache write: boom"},
		},
	}
}

func TestRun_TickRendersTable(t *testing.T) {
	t.Parallel()

	ticker := &stubTicker{report: sampleReport()}
	var buf bytes.Buffer

	require.NoError(t, cmdrefresh.Run(context.Background(), ticker, cmdrefresh.Options{}, &buf))

	assert.Equal(t, 1, ticker.ticks)
	assert.Nil(t, ticker.forced)
	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "tick-1")
	assert.Contains(t, out, "not_due")
	assert.Contains(t, out, "cache write: boom")
	assert.Contains(t, out, "1 updated")
	assert.Contains(t, out, "completed in 1.5s")
}

func TestRun_ForcedSourcesPrintJSON(t *testing.T) {
	t.Parallel()

	ticker := &stubTicker{report: sampleReport()}
	var buf bytes.Buffer

	opts := cmdrefresh.Options{Sources: []string{"alpha"}, JSON: true}
	require.NoError(t, cmdrefresh.Run(context.Background(), ticker, opts, &buf))

	assert.Equal(t, 0, ticker.ticks)
	assert.Equal(t, []string{"alpha"}, ticker.forced)

	var decoded refresh.TickReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tick-1", decoded.ID)
	assert.Equal(t, []string{"alpha"}, decoded.Updated)
	assert.Equal(t, refresh.OutcomeNotDue, decoded.Skipped["beta"])
}

func TestRun_TickError(t *testing.T) {
	t.Parallel()

	ticker := &stubTicker{err: refresh.ErrTickInProgress}
	err := cmdrefresh.Run(context.Background(), ticker, cmdrefresh.Options{}, &bytes.Buffer{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, refresh.ErrTickInProgress))
}

package feed_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
)

func TestLoadTable_Builtin(t *testing.T) {
	t.Parallel()

	table, err := feed.LoadTable("")
	require.NoError(t, err)
	require.Positive(t, table.Len())

	names := table.Names()
	assert.Equal(t, "arstechnica", names[0], "file order is preserved")
	assert.Contains(t, names, "nytimes_world", "groups are flattened")

	src, ok := table.Get("economist")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, src.TTLOr(time.Minute))

	for _, s := range table.Pull() {
		assert.True(t, s.IsPull())
	}
	vox, ok := table.Get("vox")
	require.True(t, ok)
	assert.False(t, vox.IsPull())
}

func TestParseTable_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "missing name", yaml: "sources:\n  - url: https://a.example/rss\n", wantErr: "name is required"},
		{name: "relative url", yaml: "sources:\n  - name: a\n    url: /rss\n", wantErr: "absolute http(s)"},
		{name: "bad refresh type", yaml: "sources:\n  - name: a\n    url: https://a.example\n    refresh_type: poll\n", wantErr: "refresh_type"},
		{name: "empty group", yaml: "sources:\n  - group: g\n", wantErr: "has no sources"},
		{
			name:    "duplicate",
			yaml:    "sources:\n  - name: a\n    url: https://a.example\n  - group: g\n    sources:\n      - name: a\n        url: https://b.example\n",
			wantErr: "duplicate source name",
		},
		{name: "bad yaml", yaml: "sources: [", wantErr: "parse source table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := feed.ParseTable([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTable_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := "sources:\n  - name: alpha\n    url: https://alpha.example/rss\n    ttl: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := feed.LoadTable(path)
	require.NoError(t, err)
	src, ok := table.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, feed.RefreshPull, src.RefreshType)
	assert.Equal(t, 30*time.Second, src.TTL)

	_, err = feed.LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

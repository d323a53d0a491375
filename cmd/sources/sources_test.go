package sources_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/cmd/sources"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
	"github.com/jonesrussell/north-cloud/feeds/internal/patch"
)

func testTable(t *testing.T) *feed.Table {
	t.Helper()
	tbl, err := feed.NewTable([]feed.Source{
		{Name: "alpha", URL: "https://alpha.example/rss", TTL: time.Minute},
		{Name: "beta", URL: "https://beta.example/rss"},
		{Name: "gamma", URL: "https://gamma.example/rss", RefreshType: feed.RefreshPush},
	})
	require.NoError(t, err)
	return tbl
}

func testCatalog(t *testing.T, names ...string) *patch.Catalog {
	t.Helper()
	programs := make([]patch.Program, 0, len(names))
	for _, n := range names {
		programs = append(programs, patch.Program{
			Source: n,
			Ops:    []patch.Operation{patch.Remove("/guid")},
		})
	}
	catalog, err := patch.NewCatalog(nil, programs...)
	require.NoError(t, err)
	return catalog
}

func TestValidate_ReportsMissingAndOrphanedPrograms(t *testing.T) {
	t.Parallel()

	v := sources.Validate(testTable(t), testCatalog(t, "alpha", "delta"))

	assert.Equal(t, 3, v.Sources)
	assert.Equal(t, 2, v.Pull)
	assert.Equal(t, 2, v.Programs)
	assert.Equal(t, []string{"beta"}, v.Missing)
	assert.Equal(t, []string{"delta"}, v.Orphaned)

	var buf bytes.Buffer
	v.Print(&buf)
	assert.Contains(t, buf.String(), "missing program: beta")
	assert.Contains(t, buf.String(), "unused program: delta")
	assert.NotContains(t, buf.String(), "OK")
}

func TestValidate_PushSourcesNeedNoProgram(t *testing.T) {
	t.Parallel()

	v := sources.Validate(testTable(t), testCatalog(t, "alpha", "beta"))

	assert.Empty(t, v.Missing)
	assert.Empty(t, v.Orphaned)

	var buf bytes.Buffer
	v.Print(&buf)
	assert.Contains(t, buf.String(), "OK")
}

func TestTableRenderer_RenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sources.NewTableRenderer(&buf, 3*time.Minute).RenderTable(testTable(t).All(), testCatalog(t, "alpha"))
	out := strings.ToLower(buf.String())

	assert.Contains(t, out, "refresh type")
	assert.Contains(t, out, "https://alpha.example/rss")
	assert.Contains(t, out, "1m0s")
	assert.Contains(t, out, "3m0s")
	assert.Contains(t, out, "push")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

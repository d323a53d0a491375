package patch_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
	"github.com/jonesrussell/north-cloud/feeds/internal/patch"
)

func alphaProgram() patch.Program {
	return patch.Program{
		Source: "alpha",
		Ops: []patch.Operation{
			patch.Add("/thumbnail", map[string]any{"url": nil}),
			patch.Move("/pubDate", "/publicationDate"),
			patch.Remove("/guid"),
		},
	}
}

func TestCatalog_PatchTransformsRawItem(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, alphaProgram())
	require.NoError(t, err)

	raw := map[string]any{"title": "T", "pubDate": "2024-01-01", "guid": "x"}
	got, err := catalog.Patch("alpha", raw)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"title":           "T",
		"publicationDate": "2024-01-01",
		"thumbnail":       map[string]any{"url": nil},
	}, got)
	assert.Equal(t, map[string]any{"title": "T", "pubDate": "2024-01-01", "guid": "x"}, raw, "raw item is not mutated")
}

func TestCatalog_PatchIsDeterministic(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, alphaProgram())
	require.NoError(t, err)

	raw := map[string]any{"title": "T", "pubDate": "2024-01-01", "guid": "x", "extra": []any{"a", "b"}}
	first, err := catalog.Patch("alpha", raw)
	require.NoError(t, err)
	second, err := catalog.Patch("alpha", raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCatalog_FailingOpAbortsItem(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, alphaProgram())
	require.NoError(t, err)

	_, err = catalog.Patch("alpha", map[string]any{"title": "T", "pubDate": "2024-01-01"})
	var opErr *patch.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 2, opErr.Index)
	assert.Equal(t, patch.OpRemove, opErr.Op.Op)

	_, err = catalog.Apply("alpha", map[string]any{"title": "T"})
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Index)
}

func TestCatalog_OptionalOpsSkipMissingPaths(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, patch.Program{
		Source: "beta",
		Ops: []patch.Operation{
			patch.Add("/thumbnail", map[string]any{"url": nil}),
			patch.Optionally(patch.Copy("/media:content/@url", "/thumbnail/url")),
			patch.Optionally(patch.Move("/dc:creator", "/author")),
			patch.Optionally(patch.Remove("/guid")),
		},
	})
	require.NoError(t, err)

	got, err := catalog.Patch("beta", map[string]any{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "T", "thumbnail": map[string]any{"url": nil}}, got)

	got, err = catalog.Patch("beta", map[string]any{
		"title":         "T",
		"media:content": map[string]any{"@url": "https://img/1.jpg"},
		"dc:creator":    "Jane",
		"guid":          "g",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.jpg", got["thumbnail"].(map[string]any)["url"])
	assert.Equal(t, "Jane", got["author"])
	assert.NotContains(t, got, "guid")
}

func TestCatalog_AddCreatesIntermediateContainers(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, patch.Program{
		Source: "gamma",
		Ops:    []patch.Operation{patch.Add("/thumbnail/url", "https://img/2.jpg")},
	})
	require.NoError(t, err)

	got, err := catalog.Patch("gamma", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"thumbnail": map[string]any{"url": "https://img/2.jpg"}}, got)
}

func TestCatalog_HookRunsOnCopy(t *testing.T) {
	t.Parallel()

	hooks := patch.DefaultHooks()
	var seen map[string]any
	hooks.Register("capture", func(doc map[string]any) map[string]any {
		seen = doc
		doc["hooked"] = true
		return doc
	})

	catalog, err := patch.NewCatalog(hooks,
		patch.Program{Source: "vf", Hook: patch.HookMediaThumbnail, Ops: []patch.Operation{
			patch.Add("/thumbnail", map[string]any{"url": nil}),
		}},
		patch.Program{Source: "cap", Hook: "capture"},
	)
	require.NoError(t, err)

	got, err := catalog.Patch("vf", map[string]any{
		"title":           "T",
		"media:thumbnail": map[string]any{"@url": "https://img/3.jpg", "@width": "100"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "https://img/3.jpg"}, got["thumbnail"])
	assert.NotContains(t, got, "media:thumbnail")

	got, err = catalog.Patch("cap", map[string]any{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, true, got["hooked"])
	require.NotNil(t, seen)
}

func TestCatalog_ApplyDecodesCanonicalItem(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, patch.Program{
		Source: "delta",
		Ops: []patch.Operation{
			patch.Add("/thumbnail", map[string]any{"url": nil}),
			patch.Add("/source", "Delta"),
			patch.Move("/pubDate", "/publicationDate"),
			patch.Move("/dc:creator", "/author"),
		},
	})
	require.NoError(t, err)

	item, err := catalog.Apply("delta", map[string]any{
		"title":       "T",
		"description": "D",
		"link":        "https://delta.example/1",
		"pubDate":     "2024-01-01",
		"dc:creator":  "Jane",
		"category":    []any{"Science", "Space"},
	})
	require.NoError(t, err)
	assert.Equal(t, "T", item.Title)
	assert.Equal(t, "Delta", item.Source)
	assert.Equal(t, "2024-01-01", item.PublicationDate)
	require.NotNil(t, item.Author)
	assert.Equal(t, "Jane", *item.Author)
	assert.Equal(t, "Science", item.FirstLabel())
	assert.Nil(t, item.Thumbnail.URL)

	_, err = catalog.Apply("delta", map[string]any{
		"title":      map[string]any{"@type": "html"},
		"pubDate":    "2024-01-01",
		"dc:creator": "Jane",
	})
	require.ErrorIs(t, err, patch.ErrDecode)
}

func TestCatalog_MissingProgram(t *testing.T) {
	t.Parallel()

	catalog, err := patch.NewCatalog(nil, alphaProgram())
	require.NoError(t, err)

	assert.True(t, catalog.Has("alpha"))
	assert.False(t, catalog.Has("beta"))
	_, err = catalog.Apply("beta", map[string]any{})
	require.ErrorIs(t, err, patch.ErrNoProgram)
	assert.Equal(t, []string{"beta"}, catalog.Missing([]string{"alpha", "beta"}))
}

func TestNewCatalog_RejectsInvalidPrograms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		program patch.Program
	}{
		{name: "no source", program: patch.Program{Ops: []patch.Operation{patch.Remove("/a")}}},
		{name: "bad pointer", program: patch.Program{Source: "a", Ops: []patch.Operation{patch.Remove("content")}}},
		{name: "unknown hook", program: patch.Program{Source: "a", Hook: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := patch.NewCatalog(nil, tt.program)
			require.Error(t, err)
		})
	}

	_, err := patch.NewCatalog(nil, alphaProgram(), alphaProgram())
	require.Error(t, err)
}

func TestLoadCatalog_BuiltinCoversBuiltinSources(t *testing.T) {
	t.Parallel()

	catalog, err := patch.LoadCatalog("", nil)
	require.NoError(t, err)

	table, err := feed.LoadTable("")
	require.NoError(t, err)
	assert.Empty(t, catalog.Missing(table.Names()))
}

func TestLoadCatalog_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`programs:
  alpha:
    ops:
      - {op: add, path: /thumbnail, value: {url: null}}
      - {op: move, from: /pubDate, path: /publicationDate}
`), 0o600))

	catalog, err := patch.LoadCatalog(good, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, catalog.Sources())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`programs:
  salon:
    ops:
      - {op: remove, from: /media:content}
`), 0o600))

	_, err = patch.LoadCatalog(bad, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, patch.ErrInvalidOperation))
}

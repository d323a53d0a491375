package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/feeds/internal/patch"
)

func TestThumbnailFrom(t *testing.T) {
	t.Parallel()

	hook := patch.ThumbnailFrom("media:thumbnail", "media:content")

	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "prefers first field",
			in: map[string]any{
				"media:thumbnail": map[string]any{"@url": "thumb"},
				"media:content":   map[string]any{"@url": "content"},
			},
			want: map[string]any{"thumbnail": map[string]any{"url": "thumb"}},
		},
		{
			name: "falls back to repeated second field",
			in: map[string]any{
				"thumbnail":     map[string]any{"url": nil},
				"media:content": []any{map[string]any{"@medium": "video"}, map[string]any{"@url": "c2"}},
			},
			want: map[string]any{"thumbnail": map[string]any{"url": "c2"}},
		},
		{
			name: "untouched when absent",
			in:   map[string]any{"title": "T"},
			want: map[string]any{"title": "T"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, hook(tt.in))
		})
	}
}

func TestHookRegistry(t *testing.T) {
	t.Parallel()

	r := patch.DefaultHooks()
	assert.Equal(t, []string{patch.HookMediaAny, patch.HookMediaContent, patch.HookMediaThumbnail}, r.Names())

	_, err := r.Lookup("missing")
	require.Error(t, err)
}

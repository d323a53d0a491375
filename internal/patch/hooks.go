package patch

import (
	"fmt"
	"sort"
	"sync"
)

// Hook post-processes a patched document. It receives a private deep copy
// and returns the final document.
type Hook func(doc map[string]any) map[string]any

// Hook names registered by DefaultHooks.
const (
	HookMediaThumbnail = "media_thumbnail"
	HookMediaContent   = "media_content"
	HookMediaAny       = "media_any"
)

// HookRegistry resolves hook names used in catalog files.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]Hook)}
}

// DefaultHooks returns a registry holding the built-in thumbnail hooks.
func DefaultHooks() *HookRegistry {
	r := NewHookRegistry()
	r.Register(HookMediaThumbnail, ThumbnailFrom("media:thumbnail"))
	r.Register(HookMediaContent, ThumbnailFrom("media:content"))
	r.Register(HookMediaAny, ThumbnailFrom("media:thumbnail", "media:content"))
	return r
}

// Register adds or replaces a hook.
func (r *HookRegistry) Register(name string, h Hook) {
	r.mu.Lock()
	r.hooks[name] = h
	r.mu.Unlock()
}

// Lookup returns the named hook.
func (r *HookRegistry) Lookup(name string) (Hook, error) {
	r.mu.RLock()
	h, ok := r.hooks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown hook %q", name)
	}
	return h, nil
}

// Names lists registered hooks in sorted order.
func (r *HookRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.hooks))
	for n := range r.hooks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ThumbnailFrom copies the url attribute of the first listed media field
// that carries one into thumbnail.url, then drops the listed fields. Items
// with none of the fields are returned unchanged.
func ThumbnailFrom(fields ...string) Hook {
	return func(doc map[string]any) map[string]any {
		for _, f := range fields {
			u, ok := mediaURL(doc[f])
			if !ok {
				continue
			}
			thumb, isMap := doc["thumbnail"].(map[string]any)
			if !isMap {
				thumb = make(map[string]any)
			}
			thumb["url"] = u
			doc["thumbnail"] = thumb
			for _, drop := range fields {
				delete(doc, drop)
			}
			return doc
		}
		return doc
	}
}

// mediaURL reads the url attribute from a media element or the first
// element of a repeated one.
func mediaURL(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range []string{"@url", "url"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s, true
			}
		}
	case []any:
		for _, e := range t {
			if s, ok := mediaURL(e); ok {
				return s, true
			}
		}
	}
	return "", false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

package cache

import "strings"

const (
	feedKeyPrefix     = "feed."
	canonicalSuffix   = ".canonical"
	lastRefreshSuffix = ".lastRefresh"
	responseKeyPrefix = "response."
)

// CanonicalKey is where the canonical feed of source is stored.
func CanonicalKey(source string) string {
	return feedKeyPrefix + source + canonicalSuffix
}

// RefreshKey holds the unix-millisecond time of source's last refresh.
func RefreshKey(source string) string {
	return feedKeyPrefix + source + lastRefreshSuffix
}

// ResponseKey addresses an assembled response snapshot by its ETag.
func ResponseKey(etag string) string {
	return responseKeyPrefix + strings.Trim(etag, `"`)
}

// CanonicalPattern matches every canonical feed key.
const CanonicalPattern = feedKeyPrefix + "*" + canonicalSuffix

// SourceFromCanonicalKey reverses CanonicalKey.
func SourceFromCanonicalKey(key string) (string, bool) {
	if !strings.HasPrefix(key, feedKeyPrefix) || !strings.HasSuffix(key, canonicalSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, feedKeyPrefix), canonicalSuffix)
	return name, name != ""
}

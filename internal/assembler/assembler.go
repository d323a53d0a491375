// Package assembler combines canonical feeds into ranked, paginated
// responses and caches each response under its ETag.
package assembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/resource"
)

const (
	// DefaultResponseTTL is how long an assembled response stays addressable
	// by its ETag.
	DefaultResponseTTL = 10 * time.Minute
	// ResourceName names assembled resources.
	ResourceName = "feed_items"

	etagHexLen = 32
)

// Ranking maps a category label to its rank. Lower ranks sort first; an
// unranked label ranks 0.
type Ranking map[string]float64

// Rank returns the weight of an item's first category label.
func (r Ranking) Rank(item domain.Item) float64 {
	label := item.FirstLabel()
	if label == "" {
		return 0
	}
	return r[label]
}

// Config tunes the assembler.
type Config struct {
	ResponseTTL time.Duration `mapstructure:"response_ttl"`
	PageSize    int           `mapstructure:"page_size"`
}

// Assembly is one assembled response.
type Assembly struct {
	Resource *resource.Resource
	ETag     string
	Sources  []string
}

// Assembler reads canonical feeds. It never writes canonical keys or
// refresh markers.
type Assembler struct {
	store  cache.Cache
	cfg    Config
	logger logger.Logger
}

// New creates an Assembler.
func New(store cache.Cache, cfg Config, log logger.Logger) *Assembler {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = DefaultResponseTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = resource.DefaultPageSize
	}
	return &Assembler{store: store, cfg: cfg, logger: log.With(logger.Component("assembler"))}
}

// snapshot is the cached form of an assembled response.
type snapshot struct {
	Sources []string      `json:"sources"`
	Items   []domain.Item `json:"items"`
}

// Assemble concatenates the canonical feeds of sources in order, ranks the
// items and stores the result under its ETag.
func (a *Assembler) Assemble(ctx context.Context, sources []string, ranking Ranking) (*Assembly, error) {
	items := make([]domain.Item, 0)
	for _, src := range sources {
		f, ok := a.read(ctx, src)
		if !ok {
			continue
		}
		items = append(items, f.Items...)
	}

	slices.SortStableFunc(items, func(x, y domain.Item) int {
		rx, ry := ranking.Rank(x), ranking.Rank(y)
		switch {
		case rx < ry:
			return -1
		case rx > ry:
			return 1
		default:
			return 0
		}
	})

	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal assembled items: %w", err)
	}
	etag := ETag(body)

	snap, err := json.Marshal(snapshot{Sources: sources, Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal response snapshot: %w", err)
	}
	if err = a.store.Set(ctx, cache.ResponseKey(etag), snap, a.cfg.ResponseTTL); err != nil {
		return nil, fmt.Errorf("store response %s: %w", etag, err)
	}

	a.logger.Debug("Feed assembled",
		logger.Strings("sources", sources),
		logger.Int("items", len(items)),
		logger.String("etag", etag),
	)
	return a.assembly(sources, items, etag), nil
}

// Lookup returns a previously assembled response by ETag.
func (a *Assembler) Lookup(ctx context.Context, etag string) (*Assembly, bool, error) {
	raw, ok, err := a.store.Get(ctx, cache.ResponseKey(etag))
	if err != nil {
		return nil, false, fmt.Errorf("read response %s: %w", etag, err)
	}
	if !ok {
		return nil, false, nil
	}
	var snap snapshot
	if err = json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decode response %s: %w", etag, err)
	}
	return a.assembly(snap.Sources, snap.Items, quote(etag)), true, nil
}

// Canonical returns the stored canonical feed of one source.
func (a *Assembler) Canonical(ctx context.Context, source string) (domain.Feed, bool, error) {
	raw, ok, err := a.store.Get(ctx, cache.CanonicalKey(source))
	if err != nil || !ok {
		return domain.Feed{}, false, err
	}
	var f domain.Feed
	if err = json.Unmarshal(raw, &f); err != nil {
		return domain.Feed{}, false, fmt.Errorf("decode canonical feed %s: %w", source, err)
	}
	return f, true, nil
}

// PageSize is the default page size of assembled resources.
func (a *Assembler) PageSize() int {
	return a.cfg.PageSize
}

func (a *Assembler) read(ctx context.Context, source string) (domain.Feed, bool) {
	f, ok, err := a.Canonical(ctx, source)
	switch {
	case err != nil:
		a.logger.Warn("Skipping unreadable canonical feed", logger.Source(source), logger.Error(err))
		return domain.Feed{}, false
	case !ok:
		a.logger.Debug("No canonical feed for source", logger.Source(source))
		return domain.Feed{}, false
	}
	return f, true
}

func (a *Assembler) assembly(sources []string, items []domain.Item, etag string) *Assembly {
	res := resource.New(ResourceName, a.cfg.PageSize)
	res.Set(items, nil)
	return &Assembly{Resource: res, ETag: etag, Sources: sources}
}

// ETag returns the quoted, truncated SHA-256 of body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return quote(hex.EncodeToString(sum[:])[:etagHexLen])
}

func quote(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag
	}
	return `"` + etag + `"`
}

// Package refresh runs the tick loop that keeps canonical feeds current.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/events"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

const (
	// DefaultSourceTTL is how long a refreshed source stays fresh.
	DefaultSourceTTL = 3 * time.Minute
	// DefaultMaxConcurrency bounds in-flight source refreshes per tick.
	DefaultMaxConcurrency = 8
)

var (
	// ErrTickInProgress is returned when a tick is requested while another runs.
	ErrTickInProgress = errors.New("refresh tick already in progress")
	// ErrLockNotAcquired is returned when another instance holds the tick lock.
	ErrLockNotAcquired = errors.New("refresh tick lock held by another instance")
	// ErrUnknownSource is returned for names not in the source table.
	ErrUnknownSource = errors.New("unknown source")
)

// Normalizer turns raw items into canonical items.
type Normalizer interface {
	Has(source string) bool
	Apply(source string, raw map[string]any) (domain.Item, error)
}

// TickLock excludes concurrent ticks across processes.
type TickLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Recorder receives tick instrumentation.
type Recorder interface {
	ObserveTick(result string, d time.Duration)
	RecordSource(source, outcome string, stored, dropped int)
}

// Config tunes the refresher.
type Config struct {
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// Refresher owns the canonical feed and refresh timestamp keys. It is the
// only writer of either.
type Refresher struct {
	sources  []feed.Source
	index    map[string]feed.Source
	fetcher  Fetcher
	catalog  Normalizer
	store    cache.Cache
	bus      events.Dispatcher
	cfg      Config
	logger   logger.Logger
	lock     TickLock
	recorder Recorder
	now      func() time.Time

	running sync.Mutex
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithLock gates ticks on a cross-process lock.
func WithLock(l TickLock) Option {
	return func(r *Refresher) { r.lock = l }
}

// WithRecorder attaches instrumentation.
func WithRecorder(rec Recorder) Option {
	return func(r *Refresher) { r.recorder = rec }
}

// New creates a Refresher over the pull sources in sources, kept in order.
func New(
	sources []feed.Source,
	fetcher Fetcher,
	catalog Normalizer,
	store cache.Cache,
	bus events.Dispatcher,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Refresher {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultSourceTTL
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}

	r := &Refresher{
		index:   make(map[string]feed.Source, len(sources)),
		fetcher: fetcher,
		catalog: catalog,
		store:   store,
		bus:     bus,
		cfg:     cfg,
		logger:  log.With(logger.Component("refresh")),
		now:     time.Now,
	}
	for _, src := range sources {
		if !src.IsPull() {
			r.logger.Debug("Push source is never fetched", logger.Source(src.Name))
			continue
		}
		r.sources = append(r.sources, src)
		r.index[src.Name] = src
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources returns the sources ticks consider, in order.
func (r *Refresher) Sources() []feed.Source {
	out := make([]feed.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Tick refreshes every due source and dispatches exactly one
// feeds-refreshed event when all of them have finished.
func (r *Refresher) Tick(ctx context.Context) (*TickReport, error) {
	return r.run(ctx, nil)
}

// ForceRefresh runs a tick in which the named sources skip the TTL gate.
func (r *Refresher) ForceRefresh(ctx context.Context, names []string) (*TickReport, error) {
	forced := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, n)
		}
		forced[n] = true
	}
	return r.run(ctx, forced)
}

// Invalidate clears a source's refresh marker so the next tick refreshes it.
func (r *Refresher) Invalidate(ctx context.Context, name string) error {
	if _, ok := r.index[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err := r.store.Delete(ctx, cache.RefreshKey(name)); err != nil {
		return fmt.Errorf("invalidate %s: %w", name, err)
	}
	r.logger.Info("Source invalidated", logger.Source(name))
	return nil
}

func (r *Refresher) run(ctx context.Context, forced map[string]bool) (*TickReport, error) {
	if !r.running.TryLock() {
		r.observe("rejected", 0)
		return nil, ErrTickInProgress
	}
	defer r.running.Unlock()

	if r.lock != nil {
		acquired, err := r.lock.TryLock(ctx)
		if err != nil {
			r.observe("lock_error", 0)
			return nil, fmt.Errorf("acquire tick lock: %w", err)
		}
		if !acquired {
			r.observe("rejected", 0)
			return nil, ErrLockNotAcquired
		}
		defer func() {
			if err := r.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("Failed to release tick lock", logger.Error(err))
			}
		}()
	}

	report := newReport(uuid.NewString(), r.now(), forcedNames(r.sources, forced))
	log := r.logger.With(logger.TickID(report.ID))
	log.Debug("Tick started", logger.Int("sources", len(r.sources)))

	results := make([]SourceResult, len(r.sources))
	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)
	for i, src := range r.sources {
		g.Go(func() error {
			results[i] = r.refreshSource(ctx, log, report.ID, src, forced[src.Name])
			return nil
		})
	}
	_ = g.Wait()

	report.collect(results)
	report.FinishedAt = r.now()

	r.bus.Dispatch(ctx, events.FeedsRefreshed, report, map[string]any{"tickId": report.ID})
	r.observe("completed", report.Duration())

	log.Info("Tick completed",
		logger.Strings("updated", report.Updated),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("failed", len(report.Failed)),
		logger.Duration("duration", report.Duration()),
	)
	return report, nil
}

func (r *Refresher) refreshSource(
	ctx context.Context,
	tickLog logger.Logger,
	tickID string,
	src feed.Source,
	force bool,
) (res SourceResult) {
	log := tickLog.With(logger.Source(src.Name))
	res = SourceResult{Source: src.Name}

	defer func() {
		if p := recover(); p != nil {
			res = SourceResult{Source: src.Name, Outcome: OutcomeFailed, Error: fmt.Sprintf("panic: %v", p)}
			log.Error("Source refresh panicked", logger.String("panic", res.Error))
		}
		r.record(res)
	}()

	now := r.now()

	if !force {
		due, err := r.isDue(ctx, src, now)
		if err != nil {
			log.Error("Could not read refresh timestamp", logger.Error(err))
			res.Outcome, res.Error = OutcomeFailed, err.Error()
			return res
		}
		if !due {
			log.Debug("Source not due")
			res.Outcome = OutcomeNotDue
			return res
		}
	}

	if !r.catalog.Has(src.Name) {
		log.Info("No patch program for source, skipping")
		res.Outcome = OutcomeNoProgram
		return res
	}

	doc, ok := r.fetcher.Fetch(ctx, src)
	if !ok {
		log.Warn("Source unavailable, skipping")
		res.Outcome = OutcomeUnavailable
		return res
	}

	raws := feed.Items(doc)
	if len(raws) == 0 {
		log.Warn("Source returned no items")
		res.Outcome = OutcomeEmpty
		return res
	}

	items := make([]domain.Item, 0, len(raws))
	for i, raw := range raws {
		item, err := r.catalog.Apply(src.Name, raw)
		if err != nil {
			res.Dropped++
			log.Error("Dropping item that failed normalization", logger.Int("item", i), logger.Error(err))
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		log.Warn("Every item failed normalization", logger.Int("dropped", res.Dropped))
		res.Outcome = OutcomeEmpty
		return res
	}

	key, err := r.writeFeed(ctx, src.Name, items, now)
	if err != nil {
		log.Error("Could not store canonical feed", logger.Error(err))
		res.Outcome, res.Error = OutcomeFailed, err.Error()
		return res
	}

	r.bus.Dispatch(ctx, events.FeedUpdated,
		events.FeedUpdatedPayload{Feed: src.Name, Key: key},
		map[string]any{"tickId": tickID},
	)

	log.Info("Feed refreshed", logger.Int("items", len(items)), logger.Int("dropped", res.Dropped))
	res.Outcome = OutcomeUpdated
	res.Items = len(items)
	return res
}

func (r *Refresher) isDue(ctx context.Context, src feed.Source, now time.Time) (bool, error) {
	raw, ok, err := r.store.Get(ctx, cache.RefreshKey(src.Name))
	if err != nil {
		return false, fmt.Errorf("read refresh marker: %w", err)
	}
	if !ok {
		return true, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// An unreadable marker is treated as never refreshed.
		return true, nil //nolint:nilerr // rewritten by this refresh
	}
	last := time.UnixMilli(ms)
	// Due only once the TTL has fully elapsed.
	return now.Sub(last) > src.TTLOr(r.cfg.DefaultTTL), nil
}

// writeFeed stores the canonical feed and then its refresh marker.
func (r *Refresher) writeFeed(ctx context.Context, name string, items []domain.Item, now time.Time) (string, error) {
	body, err := json.Marshal(domain.Feed{Feed: name, Items: items})
	if err != nil {
		return "", fmt.Errorf("marshal canonical feed: %w", err)
	}
	key := cache.CanonicalKey(name)
	if err = r.store.Set(ctx, key, body, 0); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	marker := []byte(strconv.FormatInt(now.UnixMilli(), 10))
	if err = r.store.Set(ctx, cache.RefreshKey(name), marker, 0); err != nil {
		return "", fmt.Errorf("write refresh marker: %w", err)
	}
	return key, nil
}

func (r *Refresher) record(res SourceResult) {
	if r.recorder != nil {
		r.recorder.RecordSource(res.Source, string(res.Outcome), res.Items, res.Dropped)
	}
}

func (r *Refresher) observe(result string, d time.Duration) {
	if r.recorder != nil {
		r.recorder.ObserveTick(result, d)
	}
}

func forcedNames(sources []feed.Source, forced map[string]bool) []string {
	if len(forced) == 0 {
		return nil
	}
	names := make([]string, 0, len(forced))
	for _, src := range sources {
		if forced[src.Name] {
			names = append(names, src.Name)
		}
	}
	return names
}

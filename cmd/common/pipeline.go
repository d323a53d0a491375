package common

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/north-cloud/feeds/internal/assembler"
	"github.com/jonesrussell/north-cloud/feeds/internal/cache"
	"github.com/jonesrussell/north-cloud/feeds/internal/config"
	"github.com/jonesrussell/north-cloud/feeds/internal/coordination"
	"github.com/jonesrussell/north-cloud/feeds/internal/events"
	"github.com/jonesrussell/north-cloud/feeds/internal/export"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/metrics"
	"github.com/jonesrussell/north-cloud/feeds/internal/patch"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
)

// Pipeline is the wired refresh pipeline shared by serve and refresh.
type Pipeline struct {
	Table     *feed.Table
	Catalog   *patch.Catalog
	Cache     cache.Cache
	Bus       *events.Bus
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Refresher *refresh.Refresher
	Assembler *assembler.Assembler

	closers []io.Closer
}

// LoadTable loads the configured source table.
func LoadTable(cfg *config.Config) (*feed.Table, error) {
	table, err := feed.LoadTable(cfg.Feeds.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	return table, nil
}

// LoadCatalog loads the configured patch catalog with the built-in hooks.
func LoadCatalog(cfg *config.Config) (*patch.Catalog, error) {
	catalog, err := patch.LoadCatalog(cfg.Patch.CatalogFile, patch.DefaultHooks())
	if err != nil {
		return nil, fmt.Errorf("load patch catalog: %w", err)
	}
	return catalog, nil
}

// NewPipeline wires the cache, bus, fetcher, catalog and refresher from deps.
// Callers must Close the pipeline.
func NewPipeline(deps CommandDeps) (*Pipeline, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	log := deps.Logger

	table, err := LoadTable(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	pull := table.Pull()
	names := make([]string, len(pull))
	for i, src := range pull {
		names[i] = src.Name
	}
	if missing := catalog.Missing(names); len(missing) > 0 {
		log.Warn("Pull sources without a patch program are skipped on every tick",
			logger.Strings("sources", missing))
	}

	store, err := cache.Open(cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	p := &Pipeline{
		Table:   table,
		Catalog: catalog,
		Cache:   store,
		Bus:     events.NewBus(log),
		closers: []io.Closer{store},
	}

	if cfg.Metrics.Enabled {
		p.Registry = prometheus.NewRegistry()
		p.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		p.Metrics = metrics.New(p.Registry)
	}

	opts := []refresh.Option{}
	if p.Metrics != nil {
		opts = append(opts, refresh.WithRecorder(p.Metrics))
	}
	if cfg.Scheduler.Lock.Enabled {
		client, lockErr := cache.NewRedisClient(cfg.Cache.Redis)
		if lockErr != nil {
			_ = p.Close()
			return nil, fmt.Errorf("connect tick lock: %w", lockErr)
		}
		p.closers = append(p.closers, client)
		opts = append(opts, refresh.WithLock(coordination.NewTickLock(client, coordination.LockConfig{
			Key: cfg.Scheduler.Lock.Key,
			TTL: cfg.Scheduler.Lock.TTL,
		})))
	}

	p.Refresher = refresh.New(
		table.All(),
		newAdapter(cfg.Feeds, log),
		catalog,
		store,
		p.Bus,
		cfg.Feeds.Refresh(),
		log,
		opts...,
	)
	p.Assembler = assembler.New(store, cfg.Assembler, log)

	if p.Metrics != nil {
		p.Bus.SubscribeAll(p.Metrics.EventHandler())
	}

	return p, nil
}

func newAdapter(cfg config.FeedsConfig, log logger.Logger) *feed.Adapter {
	fetcher := feed.NewHTTPFetcher(
		&http.Client{Timeout: cfg.FetchTimeout},
		feed.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		feed.WithUserAgent(cfg.UserAgent),
	)
	return feed.NewAdapter(fetcher, feed.AdapterConfig{
		ProxyPrefix: cfg.ProxyPrefix,
		Timeout:     cfg.FetchTimeout,
	}, log)
}

// ExportRecorder returns the metrics as an export recorder, or nil when
// metrics are disabled.
func (p *Pipeline) ExportRecorder() export.Recorder {
	if p.Metrics == nil {
		return nil
	}
	return p.Metrics
}

// Gatherer returns the metrics registry, or nil when metrics are disabled.
func (p *Pipeline) Gatherer() prometheus.Gatherer {
	if p.Registry == nil {
		return nil
	}
	return p.Registry
}

// Close releases the cache and lock connections.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// DefaultFetchTimeout bounds a single source fetch.
const DefaultFetchTimeout = 15 * time.Second

var (
	errEmptyBody       = errors.New("empty response body")
	errUnsupportedFeed = errors.New("body is not an RSS or Atom feed")
)

// Adapter turns a Source into a decoded Document. Failures are classified,
// logged and reported as ok == false; they never propagate.
type Adapter struct {
	fetcher     HTTPFetcher
	proxyPrefix string
	timeout     time.Duration
	logger      logger.Logger
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	// ProxyPrefix is prepended verbatim to every source URL.
	ProxyPrefix string
	Timeout     time.Duration
}

// NewAdapter creates an Adapter.
func NewAdapter(fetcher HTTPFetcher, cfg AdapterConfig, log logger.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	return &Adapter{
		fetcher:     fetcher,
		proxyPrefix: cfg.ProxyPrefix,
		timeout:     cfg.Timeout,
		logger:      log.With(logger.Component("feed.adapter")),
	}
}

// Fetch retrieves and decodes src.
func (a *Adapter) Fetch(ctx context.Context, src Source) (Document, bool) {
	doc, err := a.Retrieve(ctx, src)
	if err == nil {
		return doc, true
	}

	fields := []logger.Field{
		logger.Source(src.Name),
		logger.Error(err),
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		fields = append(fields,
			logger.String("error_type", string(fetchErr.Kind)),
			logger.String("url", fetchErr.URL),
		)
		if fetchErr.Status > 0 {
			fields = append(fields, logger.Int("status_code", fetchErr.Status))
		}
		if !fetchErr.Routine() {
			a.logger.Error("Could not get feed", fields...)
			return nil, false
		}
	}

	a.logger.Warn("Could not get feed", fields...)
	return nil, false
}

// Retrieve is Fetch with the classified error returned instead of logged.
// Errors are always *FetchError.
func (a *Adapter) Retrieve(ctx context.Context, src Source) (Document, error) {
	target := a.proxyPrefix + src.URL

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, NewNetworkError(err, target)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewStatusError(resp.StatusCode, target)
	}

	doc, err := parseBody(resp.Body)
	if err != nil {
		return nil, NewParseError(err, target)
	}

	a.logger.Debug("Feed fetched",
		logger.Source(src.Name),
		logger.String("root", doc.Root()),
		logger.Int("bytes", len(resp.Body)),
	)
	return doc, nil
}

func parseBody(body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyBody
	}

	switch ft := gofeed.DetectFeedType(bytes.NewReader(body)); ft {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return nil, fmt.Errorf("%w (detected %v)", errUnsupportedFeed, feedTypeName(ft))
	}

	return DecodeBytes(body)
}

func feedTypeName(ft gofeed.FeedType) string {
	switch ft {
	case gofeed.FeedTypeJSON:
		return "json"
	case gofeed.FeedTypeRSS:
		return "rss"
	case gofeed.FeedTypeAtom:
		return "atom"
	default:
		return "unknown"
	}
}

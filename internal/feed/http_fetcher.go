package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "north-cloud-feeds/1.0"
	acceptHeader     = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.5"
	maxBodyBytes     = 10 << 20
)

// HTTPFetcher fetches raw feed bodies.
type HTTPFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResponse, error)
}

// FetchResponse is the raw result of a fetch.
type FetchResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// DefaultHTTPFetcher implements HTTPFetcher using net/http. An optional
// limiter paces requests across all sources.
type DefaultHTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// FetcherOption configures a DefaultHTTPFetcher.
type FetcherOption func(*DefaultHTTPFetcher)

// WithRateLimit paces requests to rps with the given burst. rps <= 0 disables
// pacing.
func WithRateLimit(rps float64, burst int) FetcherOption {
	return func(f *DefaultHTTPFetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *DefaultHTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher backed by client.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *DefaultHTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &DefaultHTTPFetcher{client: client, userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs an HTTP GET and reads at most maxBodyBytes of the body.
func (f *DefaultHTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("http fetcher rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("http fetcher new request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", f.userAgent)

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetcher do request: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("http fetcher read body: %w", readErr)
	}

	return &FetchResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

const (
	// ElasticsearchSinkName names the Elasticsearch sink.
	ElasticsearchSinkName = "elasticsearch"
	// DefaultIndex receives exported items when no index is configured.
	DefaultIndex = "feeds_training_data"

	defaultESURL       = "http://localhost:9200"
	defaultPingTimeout = 5 * time.Second
	defaultMaxRetries  = 3
)

// ElasticsearchConfig configures the Elasticsearch sink.
type ElasticsearchConfig struct {
	URL         string        `mapstructure:"url"`
	Index       string        `mapstructure:"index"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"` //nolint:gosec // ES connection config
	APIKey      string        `mapstructure:"api_key"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// NewElasticsearchClient creates a client and verifies the cluster answers.
func NewElasticsearchClient(ctx context.Context, cfg ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	url := normalizeURL(cfg.URL)
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}

	clientConfig := es.Config{
		Addresses:  []string{url},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("ping returned error [%s]", res.Status())
	}

	log.Info("Elasticsearch connection established", logger.String("url", url))
	return client, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return defaultESURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// ElasticsearchSink bulk-indexes items. Document IDs are deterministic, so
// re-exporting an item overwrites it.
type ElasticsearchSink struct {
	client *es.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

// NewElasticsearchSink creates a sink writing to index.
func NewElasticsearchSink(client *es.Client, index string, log logger.Logger) *ElasticsearchSink {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchSink{
		client: client,
		index:  index,
		logger: log.With(logger.Component("export"), logger.String("sink", ElasticsearchSinkName)),
		now:    time.Now,
	}
}

// Name implements Sink.
func (s *ElasticsearchSink) Name() string { return ElasticsearchSinkName }

// Close implements Sink.
func (s *ElasticsearchSink) Close() error { return nil }

// document is the indexed form of an exported item.
type document struct {
	domain.Item
	Bucket     string    `json:"bucket"`
	ExportedAt time.Time `json:"exportedAt"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Push implements Sink.
func (s *ElasticsearchSink) Push(ctx context.Context, bucket string, items []domain.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	bucket = normalizeBucket(bucket)
	exportedAt := s.now().UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		meta := map[string]any{
			"index": map[string]any{
				"_index": s.index,
				"_id":    DocumentID(bucket, it),
			},
		}
		if err := enc.Encode(meta); err != nil {
			return 0, fmt.Errorf("failed to encode meta: %w", err)
		}
		if err := enc.Encode(document{Item: it, Bucket: bucket, ExportedAt: exportedAt}); err != nil {
			return 0, fmt.Errorf("failed to encode document: %w", err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("bulk indexing error: %s", res.String())
	}

	var parsed bulkResponse
	if err = json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("error decoding bulk response: %w", err)
	}

	indexed := len(items)
	if parsed.Errors {
		for _, entry := range parsed.Items {
			for _, result := range entry {
				if result.Error == nil {
					continue
				}
				indexed--
				s.logger.Warn("Document rejected by bulk index",
					logger.String("id", result.ID),
					logger.String("reason", result.Error.Reason),
				)
			}
		}
		if indexed == 0 {
			return 0, fmt.Errorf("bulk indexing rejected all %d documents", len(items))
		}
	}
	return indexed, nil
}

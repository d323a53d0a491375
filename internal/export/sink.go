// Package export pushes freshly refreshed canonical items to a training-data
// sink.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// ErrUnknownSink is returned when the configured sink does not exist.
var ErrUnknownSink = errors.New("unknown export sink")

// Sink stores exported items in named buckets.
type Sink interface {
	Name() string
	Push(ctx context.Context, bucket string, items []domain.Item) (int, error)
	Close() error
}

// Config selects and configures the sink.
type Config struct {
	Enabled       bool                `mapstructure:"enabled"`
	Sink          string              `mapstructure:"sink"`
	Timeout       time.Duration       `mapstructure:"timeout"`
	File          FileConfig          `mapstructure:"file"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// Open builds the configured sink.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", FileSinkName:
		return NewFileSink(cfg.File.Path, log)
	case ElasticsearchSinkName:
		client, err := NewElasticsearchClient(ctx, cfg.Elasticsearch, log)
		if err != nil {
			return nil, err
		}
		return NewElasticsearchSink(client, cfg.Elasticsearch.Index, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Sink)
	}
}

// BucketFor is the bucket a source's items are exported to.
func BucketFor(source string) string {
	return "/" + source
}

// DocumentID identifies an item within a bucket. Re-exporting the same item
// yields the same ID.
func DocumentID(bucket string, item domain.Item) string {
	key := item.Link
	if key == "" {
		key = item.Title + "\x00" + item.PublicationDate
	}
	sum := sha256.Sum256([]byte(normalizeBucket(bucket) + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func normalizeBucket(bucket string) string {
	if strings.HasPrefix(bucket, "/") {
		return bucket
	}
	return "/" + bucket
}

package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

const (
	// FileSinkName names the file sink.
	FileSinkName = "file"
	// DefaultFilePath is where the file sink writes when no path is set.
	DefaultFilePath = "data/training-sink.json"

	filePerm = 0o644
	dirPerm  = 0o755
)

// FileConfig configures the file sink.
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// FileSink keeps every bucket in one JSON document that is rewritten
// atomically on each push.
type FileSink struct {
	path   string
	logger logger.Logger

	mu      sync.Mutex
	buckets map[string][]domain.Item
	seen    map[string]map[string]struct{}
}

// NewFileSink loads the document at path. A missing file starts empty.
func NewFileSink(path string, log logger.Logger) (*FileSink, error) {
	if path == "" {
		path = DefaultFilePath
	}
	s := &FileSink{
		path:    path,
		logger:  log.With(logger.Component("export"), logger.String("sink", FileSinkName)),
		buckets: make(map[string][]domain.Item),
		seen:    make(map[string]map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("Sink file not found, starting empty", logger.String("path", path))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read sink file: %w", err)
	}

	if err = json.Unmarshal(data, &s.buckets); err != nil {
		return nil, fmt.Errorf("decode sink file %s: %w", path, err)
	}
	for bucket, items := range s.buckets {
		ids := make(map[string]struct{}, len(items))
		for _, it := range items {
			ids[DocumentID(bucket, it)] = struct{}{}
		}
		s.seen[bucket] = ids
	}
	return s, nil
}

// Name implements Sink.
func (s *FileSink) Name() string { return FileSinkName }

// Push appends items not already in bucket and rewrites the file. It
// returns how many items were added.
func (s *FileSink) Push(_ context.Context, bucket string, items []domain.Item) (int, error) {
	bucket = normalizeBucket(bucket)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := maps.Clone(s.seen[bucket])
	if ids == nil {
		ids = make(map[string]struct{})
	}
	current := s.buckets[bucket]
	added := 0
	for _, it := range items {
		id := DocumentID(bucket, it)
		if _, dup := ids[id]; dup {
			continue
		}
		ids[id] = struct{}{}
		current = append(current, it)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	next := maps.Clone(s.buckets)
	if next == nil {
		next = make(map[string][]domain.Item, 1)
	}
	next[bucket] = current
	if err := s.write(next); err != nil {
		return 0, err
	}
	s.buckets = next
	s.seen[bucket] = ids
	return added, nil
}

// Pull returns a copy of a bucket's items.
func (s *FileSink) Pull(bucket string) []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.buckets[normalizeBucket(bucket)]
	out := make([]domain.Item, len(items))
	copy(out, items)
	return out
}

// Close implements Sink.
func (s *FileSink) Close() error { return nil }

func (s *FileSink) write(buckets map[string][]domain.Item) error {
	data, err := json.MarshalIndent(buckets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sink: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create sink dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sink-*.json")
	if err != nil {
		return fmt.Errorf("create temp sink file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp sink file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp sink file: %w", err)
	}
	if err = os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("chmod sink file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace sink file: %w", err)
	}
	return nil
}

// Package feed fetches upstream RSS/Atom sources and decodes them into
// nested maps that preserve the raw element paths.
package feed

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RefreshType says how a source is kept current.
type RefreshType string

const (
	// RefreshPull sources are fetched by the tick loop.
	RefreshPull RefreshType = "pull"
	// RefreshPush sources are delivered by the upstream and never fetched.
	RefreshPush RefreshType = "push"
)

// Source is one upstream feed.
type Source struct {
	Name        string        `yaml:"name"`
	URL         string        `yaml:"url"`
	RefreshType RefreshType   `yaml:"refresh_type"`
	TTL         time.Duration `yaml:"ttl"`
}

// TTLOr returns the source's own TTL, or fallback when none is set.
func (s Source) TTLOr(fallback time.Duration) time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return fallback
}

// IsPull reports whether the tick loop should fetch this source.
func (s Source) IsPull() bool {
	return s.RefreshType == RefreshPull
}

// ErrDuplicateSource is returned when a name appears twice in a table.
var ErrDuplicateSource = errors.New("duplicate source name")

//go:embed sources.yaml
var defaultSources []byte

type tableFile struct {
	Sources []tableEntry `yaml:"sources"`
}

// tableEntry is either a source or a named group of sources.
type tableEntry struct {
	Source  `yaml:",inline"`
	Group   string   `yaml:"group"`
	Members []Source `yaml:"sources"`
}

// Table is the ordered set of configured sources.
type Table struct {
	sources []Source
	index   map[string]int
}

// LoadTable reads the source table at path, or the built-in table when path
// is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return ParseTable(defaultSources)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML source table. Groups are flattened
// in file order.
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse source table: %w", err)
	}

	var flat []Source
	for _, entry := range file.Sources {
		if entry.Group != "" {
			if len(entry.Members) == 0 {
				return nil, fmt.Errorf("source group %q has no sources", entry.Group)
			}
			flat = append(flat, entry.Members...)
			continue
		}
		flat = append(flat, entry.Source)
	}

	return NewTable(flat)
}

// NewTable validates sources and builds a table preserving their order.
func NewTable(sources []Source) (*Table, error) {
	t := &Table{
		sources: make([]Source, 0, len(sources)),
		index:   make(map[string]int, len(sources)),
	}

	for i, src := range sources {
		if src.RefreshType == "" {
			src.RefreshType = RefreshPull
		}
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if _, dup := t.index[src.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
		}
		t.index[src.Name] = len(t.sources)
		t.sources = append(t.sources, src)
	}

	return t, nil
}

func validateSource(src Source) error {
	if src.Name == "" {
		return errors.New("name is required")
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", src.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: url must be absolute http(s), got %q", src.Name, src.URL)
	}
	switch src.RefreshType {
	case RefreshPull, RefreshPush:
	default:
		return fmt.Errorf("%s: unknown refresh_type %q", src.Name, src.RefreshType)
	}
	if src.TTL < 0 {
		return fmt.Errorf("%s: ttl must not be negative", src.Name)
	}
	return nil
}

// All returns every source in table order.
func (t *Table) All() []Source {
	out := make([]Source, len(t.sources))
	copy(out, t.sources)
	return out
}

// Pull returns the sources the tick loop fetches, in table order.
func (t *Table) Pull() []Source {
	out := make([]Source, 0, len(t.sources))
	for _, s := range t.sources {
		if s.IsPull() {
			out = append(out, s)
		}
	}
	return out
}

// Get looks a source up by name.
func (t *Table) Get(name string) (Source, bool) {
	i, ok := t.index[name]
	if !ok {
		return Source{}, false
	}
	return t.sources[i], true
}

// Names returns source names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.sources))
	for i, s := range t.sources {
		out[i] = s.Name
	}
	return out
}

// Len returns the number of sources.
func (t *Table) Len() int { return len(t.sources) }

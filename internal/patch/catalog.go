package patch

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
)

var (
	// ErrNoProgram is returned for sources without a registered program.
	ErrNoProgram = errors.New("no patch program for source")
	// ErrDecode marks a patched document that does not fit the canonical schema.
	ErrDecode = errors.New("patched item does not match canonical schema")
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Programs map[string]*Program `yaml:"programs"`
}

// Catalog maps source names to compiled programs. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	programs map[string]*Program
}

// LoadCatalog reads the catalog at path, or the built-in catalog when path
// is empty.
func LoadCatalog(path string, hooks *HookRegistry) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog, hooks)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch catalog: %w", err)
	}
	return ParseCatalog(data, hooks)
}

// ParseCatalog decodes and compiles a YAML catalog.
func ParseCatalog(data []byte, hooks *HookRegistry) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse patch catalog: %w", err)
	}

	programs := make([]Program, 0, len(file.Programs))
	for name, p := range file.Programs {
		if p == nil {
			return nil, fmt.Errorf("program %s: empty definition", name)
		}
		p.Source = name
		programs = append(programs, *p)
	}
	return NewCatalog(hooks, programs...)
}

// NewCatalog compiles programs into a catalog. Every operation is validated
// and every hook resolved up front.
func NewCatalog(hooks *HookRegistry, programs ...Program) (*Catalog, error) {
	if hooks == nil {
		hooks = DefaultHooks()
	}

	c := &Catalog{programs: make(map[string]*Program, len(programs))}
	for i := range programs {
		p := programs[i]
		if p.Source == "" {
			return nil, fmt.Errorf("program %d: source name is required", i)
		}
		if _, dup := c.programs[p.Source]; dup {
			return nil, fmt.Errorf("program %s: defined twice", p.Source)
		}
		if err := p.compile(hooks); err != nil {
			return nil, err
		}
		c.programs[p.Source] = &p
	}
	return c, nil
}

// Has reports whether source has a program.
func (c *Catalog) Has(source string) bool {
	_, ok := c.programs[source]
	return ok
}

// Sources lists sources with programs, sorted.
func (c *Catalog) Sources() []string {
	out := make([]string, 0, len(c.programs))
	for name := range c.programs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Missing returns the names, in input order, that have no program.
func (c *Catalog) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if !c.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Program returns the program registered for source.
func (c *Catalog) Program(source string) (*Program, bool) {
	p, ok := c.programs[source]
	return p, ok
}

// Patch runs source's program and hook against raw and returns the
// resulting document.
func (c *Catalog) Patch(source string, raw map[string]any) (map[string]any, error) {
	p, ok := c.programs[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProgram, source)
	}
	return p.Apply(raw)
}

// Apply patches raw and decodes the result into a canonical item.
func (c *Catalog) Apply(source string, raw map[string]any) (domain.Item, error) {
	doc, err := c.Patch(source, raw)
	if err != nil {
		return domain.Item{}, err
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: %s: %w", ErrDecode, source, err)
	}

	var item domain.Item
	if err := json.Unmarshal(encoded, &item); err != nil {
		return domain.Item{}, fmt.Errorf("%w: %s: %w", ErrDecode, source, err)
	}
	item.Normalize()
	return item, nil
}

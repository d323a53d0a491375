// Package resource provides a forward-only paginated view over assembled
// feed items.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
)

// DefaultPageSize is used when a non-positive page size is requested.
const DefaultPageSize = 10

// ErrNegativeSkip is returned when Skip is asked to move backwards.
var ErrNegativeSkip = errors.New("skip count must not be negative")

// Info is resource metadata.
type Info struct {
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Count    int       `json:"count"`
	Pages    int       `json:"pages"`
	PageSize int       `json:"pageSize"`
	Offset   int       `json:"offset"`
	HasNext  bool      `json:"hasNext"`
}

// Resource pages through a fixed item list. The offset only moves forward.
// A Resource is not safe for concurrent use.
type Resource struct {
	name     string
	date     time.Time
	pageSize int
	items    []domain.Item
	offset   int
	page     []domain.Item
}

// New creates an empty resource.
func New(name string, pageSize int) *Resource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resource{
		name:     name,
		date:     time.Now().UTC(),
		pageSize: pageSize,
		items:    []domain.Item{},
		page:     []domain.Item{},
	}
}

// Set replaces the item list and rewinds. An error or nil items leave the
// resource empty.
func (r *Resource) Set(items []domain.Item, err error) {
	if err != nil || items == nil {
		items = []domain.Item{}
	}
	r.items = items
	r.offset = 0
	r.page = []domain.Item{}
	r.check()
}

// Next returns the next page and advances the offset past it.
func (r *Resource) Next() []domain.Item {
	end := min(r.offset+r.pageSize, len(r.items))
	r.page = r.items[r.offset:end:end]
	r.offset = end
	r.check()
	return r.page
}

// Skip advances the offset by n items without returning them.
func (r *Resource) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSkip, n)
	}
	r.offset = min(r.offset+n, len(r.items))
	r.check()
	return nil
}

// Info describes the resource's current state.
func (r *Resource) Info() Info {
	count := len(r.items)
	return Info{
		Name:     r.name,
		Date:     r.date,
		Count:    count,
		Pages:    pages(count, r.pageSize),
		PageSize: r.pageSize,
		Offset:   r.offset,
		HasNext:  r.offset < count,
	}
}

// Items returns the full item list.
func (r *Resource) Items() []domain.Item {
	return r.items
}

// Page returns the page most recently returned by Next.
func (r *Resource) Page() []domain.Item {
	return r.page
}

// PageStart is the index of the current page's first item.
func (r *Resource) PageStart() int {
	return r.offset - len(r.page)
}

// MarshalJSON renders the metadata and the current page.
func (r *Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Info  Info          `json:"info"`
		Items []domain.Item `json:"items"`
	}{Info: r.Info(), Items: r.page})
}

func pages(count, size int) int {
	return (count + size - 1) / size
}

// check panics when the paginator's bookkeeping is inconsistent.
func (r *Resource) check() {
	count := len(r.items)
	switch {
	case r.pageSize <= 0:
		panic(fmt.Sprintf("resource %s: page size %d", r.name, r.pageSize))
	case r.offset < 0 || r.offset > count:
		panic(fmt.Sprintf("resource %s: offset %d outside [0,%d]", r.name, r.offset, count))
	case len(r.page) > r.pageSize:
		panic(fmt.Sprintf("resource %s: page of %d exceeds size %d", r.name, len(r.page), r.pageSize))
	}
}

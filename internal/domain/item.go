// Package domain holds the canonical feed item schema shared by every stage
// of the refresh pipeline.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Item is the canonical, source-independent shape of a feed entry.
type Item struct {
	Title           string     `json:"title"`
	Link            string     `json:"link,omitempty"`
	Description     string     `json:"description"`
	Category        Categories `json:"category"`
	Thumbnail       Thumbnail  `json:"thumbnail"`
	Source          string     `json:"source"`
	PublicationDate string     `json:"publicationDate"`
	Author          *string    `json:"author"`
	HTML            *string    `json:"html"`
}

// Thumbnail points at an item's preview image, if any.
type Thumbnail struct {
	URL *string `json:"url"`
}

// Category is a labelled classification with a confidence score.
type Category struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Categories decodes leniently: feeds carry categories as a bare string, an
// object, or a list mixing both.
type Categories []Category

// UnmarshalJSON implements json.Unmarshaler.
func (c *Categories) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Categories{}
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode categories: %w", err)
		}
		out := make(Categories, 0, len(raw))
		for i, r := range raw {
			cat, err := decodeCategory(r)
			if err != nil {
				return fmt.Errorf("decode category %d: %w", i, err)
			}
			out = append(out, cat)
		}
		*c = out
		return nil
	}

	cat, err := decodeCategory(data)
	if err != nil {
		return err
	}
	*c = Categories{cat}
	return nil
}

func decodeCategory(data json.RawMessage) (Category, error) {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		return Category{Label: label}, nil
	}

	var obj struct {
		Label *string `json:"label"`
		Text  *string `json:"#text"`
		Term  *string `json:"@term"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return Category{}, fmt.Errorf("unsupported category shape: %w", err)
	}

	switch {
	case obj.Label != nil:
		return Category{Label: *obj.Label, Score: obj.Score}, nil
	case obj.Text != nil:
		return Category{Label: *obj.Text, Score: obj.Score}, nil
	case obj.Term != nil:
		return Category{Label: *obj.Term, Score: obj.Score}, nil
	default:
		return Category{}, fmt.Errorf("category object has no label")
	}
}

// FirstLabel returns the label of the first category, or "" when none.
func (i *Item) FirstLabel() string {
	if len(i.Category) == 0 {
		return ""
	}
	return i.Category[0].Label
}

// Normalize fills nil collections so encoded items always carry a list.
func (i *Item) Normalize() {
	if i.Category == nil {
		i.Category = Categories{}
	}
}

// Feed is the canonical feed stored per source.
type Feed struct {
	Feed  string `json:"feed"`
	Items []Item `json:"items"`
}

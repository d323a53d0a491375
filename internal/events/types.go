// Package events defines the system event envelope and the in-process bus
// that carries it between pipeline stages.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Name identifies an event type.
type Name string

const (
	FeedUpdated            Name = "evt.feeds.feed_updated"
	FeedsRefreshed         Name = "evt.feeds.feeds_refreshed"
	FeedMonitorInitialized Name = "evt.feeds.feed_monitor_initialized"
	TrainingDataExported   Name = "evt.feeds.training_data_exported"
	AppInitialized         Name = "evt.system.app_initialized"
)

// Header carries event metadata.
type Header struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Name      Name           `json:"name"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Header  Header `json:"header"`
	Payload any    `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and the current UTC time.
func New(name Name, payload any, meta map[string]any) Event {
	return Event{
		Header: Header{
			ID:        uuid.New(),
			Timestamp: time.Now().UTC(),
			Name:      name,
			Meta:      meta,
		},
		Payload: payload,
	}
}

// FeedUpdatedPayload announces a freshly written canonical feed.
type FeedUpdatedPayload struct {
	Feed string `json:"feedName"`
	Key  string `json:"key"`
}

// TrainingDataExportedPayload announces items pushed to an export sink.
type TrainingDataExportedPayload struct {
	Feed   string `json:"feedName"`
	Bucket string `json:"bucket"`
	Items  int    `json:"items"`
	Sink   string `json:"sink"`
}

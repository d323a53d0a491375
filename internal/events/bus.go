package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// Handler reacts to a dispatched event. Returned errors are logged by the bus
// and never reach the dispatcher.
type Handler func(ctx context.Context, evt Event) error

//go:generate mockgen -source=bus.go -destination=../../testutils/mocks/events/dispatcher.go -package=events

// Dispatcher publishes events.
type Dispatcher interface {
	Dispatch(ctx context.Context, name Name, payload any, meta map[string]any) Event
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	byName map[Name][]subscription
	all    []subscription
	logger logger.Logger
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	return &Bus{
		byName: make(map[Name][]subscription),
		logger: log.With(logger.Component("events")),
	}
}

// Subscribe registers handler for name and returns a function that removes it.
func (b *Bus) Subscribe(name Name, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byName[name] = append(b.byName[name], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byName[name] = remove(b.byName[name], id)
	}
}

// SubscribeAll registers handler for every event name.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// Dispatch delivers a new event to every subscriber on the calling goroutine
// and returns it. Handlers for the name run before catch-all handlers.
func (b *Bus) Dispatch(ctx context.Context, name Name, payload any, meta map[string]any) Event {
	evt := New(name, payload, meta)

	b.mu.RLock()
	named := b.byName[name]
	handlers := make([]subscription, 0, len(named)+len(b.all))
	handlers = append(handlers, named...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, sub := range handlers {
		b.deliver(ctx, sub.handler, evt)
	}

	b.logger.Debug("Event dispatched",
		logger.String("event", string(name)),
		logger.String("event_id", evt.Header.ID.String()),
		logger.Int("handlers", len(handlers)),
	)

	return evt
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				logger.String("event", string(evt.Header.Name)),
				logger.String("event_id", evt.Header.ID.String()),
				logger.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()

	if err := h(ctx, evt); err != nil {
		b.logger.Error("Failed to handle event",
			logger.String("event", string(evt.Header.Name)),
			logger.String("event_id", evt.Header.ID.String()),
			logger.Error(err),
		)
	}
}

// HandlerCount returns the number of handlers registered for name, excluding
// catch-all handlers.
func (b *Bus) HandlerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName[name])
}

func remove(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

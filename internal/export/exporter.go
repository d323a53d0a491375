package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/events"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
)

// DefaultTimeout bounds one export, read plus push.
const DefaultTimeout = 10 * time.Second

// CanonicalReader reads stored canonical feeds.
type CanonicalReader interface {
	Canonical(ctx context.Context, source string) (domain.Feed, bool, error)
}

// Recorder receives export outcomes.
type Recorder interface {
	RecordExport(sink string, err error)
}

// Exporter reacts to feed updates by pushing the refreshed items to a sink.
// Failures are logged and never reach the refresh tick.
type Exporter struct {
	reader   CanonicalReader
	sink     Sink
	bus      events.Dispatcher
	recorder Recorder
	timeout  time.Duration
	logger   logger.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithTimeout bounds each export. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExporter creates an Exporter. recorder may be nil.
func NewExporter(
	reader CanonicalReader,
	sink Sink,
	bus events.Dispatcher,
	recorder Recorder,
	log logger.Logger,
	opts ...Option,
) *Exporter {
	e := &Exporter{
		reader:   reader,
		sink:     sink,
		bus:      bus,
		recorder: recorder,
		timeout:  DefaultTimeout,
		logger:   log.With(logger.Component("export"), logger.String("sink", sink.Name())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscriber registers event handlers.
type Subscriber interface {
	Subscribe(name events.Name, handler events.Handler) func()
}

// Subscribe attaches the exporter to feed-updated events.
func (e *Exporter) Subscribe(bus Subscriber) func() {
	return bus.Subscribe(events.FeedUpdated, e.Handle)
}

// Handle is the feed-updated event handler. It runs on the refreshing
// goroutine, so every export is bounded by the exporter timeout.
func (e *Exporter) Handle(ctx context.Context, evt events.Event) error {
	var payload events.FeedUpdatedPayload
	switch p := evt.Payload.(type) {
	case events.FeedUpdatedPayload:
		payload = p
	case *events.FeedUpdatedPayload:
		payload = *p
	default:
		e.logger.Warn("Ignoring feed update with unexpected payload", logger.String("type", fmt.Sprintf("%T", evt.Payload)))
		return nil
	}

	if err := e.Export(ctx, payload.Feed); err != nil {
		e.logger.Error("Training data export failed", logger.Source(payload.Feed), logger.Error(err))
	}
	return nil
}

// Export pushes the current canonical items of source to its bucket.
func (e *Exporter) Export(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	f, ok, err := e.reader.Canonical(ctx, source)
	if err != nil {
		e.record(err)
		return fmt.Errorf("read canonical feed: %w", err)
	}
	if !ok || len(f.Items) == 0 {
		e.logger.Debug("Nothing to export", logger.Source(source))
		return nil
	}

	bucket := BucketFor(source)
	pushed, err := e.sink.Push(ctx, bucket, f.Items)
	e.record(err)
	if err != nil {
		return fmt.Errorf("push to %s: %w", bucket, err)
	}

	e.bus.Dispatch(ctx, events.TrainingDataExported, events.TrainingDataExportedPayload{
		Feed:   source,
		Bucket: bucket,
		Items:  pushed,
		Sink:   e.sink.Name(),
	}, nil)
	e.logger.Debug("Training data exported",
		logger.Source(source),
		logger.String("bucket", bucket),
		logger.Int("items", pushed),
	)
	return nil
}

func (e *Exporter) record(err error) {
	if e.recorder != nil {
		e.recorder.RecordExport(e.sink.Name(), err)
	}
}

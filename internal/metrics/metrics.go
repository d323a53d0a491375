// Package metrics exposes Prometheus instrumentation for the refresh
// pipeline, the event bus and the HTTP surface.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonesrussell/north-cloud/feeds/internal/events"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "feeds"
)

// Metrics holds all collectors. A nil *Metrics records nothing.
type Metrics struct {
	TicksTotal          *prometheus.CounterVec
	TickDurationSeconds prometheus.Histogram
	SourceRefreshTotal  *prometheus.CounterVec
	ItemsStored         *prometheus.GaugeVec
	ItemsDroppedTotal   *prometheus.CounterVec
	EventsTotal         *prometheus.CounterVec
	ExportTotal         *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	m.initRefreshMetrics(factory)
	m.initPipelineMetrics(factory)
	m.initHTTPMetrics(factory)
	return m
}

func (m *Metrics) initRefreshMetrics(factory promauto.Factory) {
	m.TicksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "ticks_total",
			Help:      "Refresh ticks by result",
		},
		[]string{"result"},
	)

	m.TickDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of completed refresh ticks",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	m.SourceRefreshTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "source_total",
			Help:      "Per-source refresh outcomes",
		},
		[]string{"source", "outcome"},
	)

	m.ItemsStored = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "items_stored",
			Help:      "Items in the latest canonical feed of each source",
		},
		[]string{"source"},
	)

	m.ItemsDroppedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "items_dropped_total",
			Help:      "Raw items that failed normalization",
		},
		[]string{"source"},
	)
}

func (m *Metrics) initPipelineMetrics(factory promauto.Factory) {
	m.EventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Events dispatched on the internal bus",
		},
		[]string{"name"},
	)

	m.ExportTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "export",
			Name:      "pushes_total",
			Help:      "Training data pushes by sink and result",
		},
		[]string{"sink", "result"},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObserveTick records a finished or rejected tick.
func (m *Metrics) ObserveTick(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(result).Inc()
	if d > 0 {
		m.TickDurationSeconds.Observe(d.Seconds())
	}
}

// RecordSource records one source's outcome within a tick.
func (m *Metrics) RecordSource(source, outcome string, stored, dropped int) {
	if m == nil {
		return
	}
	m.SourceRefreshTotal.WithLabelValues(source, outcome).Inc()
	if dropped > 0 {
		m.ItemsDroppedTotal.WithLabelValues(source).Add(float64(dropped))
	}
	if stored > 0 {
		m.ItemsStored.WithLabelValues(source).Set(float64(stored))
	}
}

// RecordExport records a sink push.
func (m *Metrics) RecordExport(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ExportTotal.WithLabelValues(sink, result).Inc()
}

// EventHandler counts every event seen on the bus.
func (m *Metrics) EventHandler() events.Handler {
	return func(_ context.Context, evt events.Event) error {
		if m != nil {
			m.EventsTotal.WithLabelValues(string(evt.Header.Name)).Inc()
		}
		return nil
	}
}

// GinMiddleware records request counts and latency by matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDurationSeconds.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

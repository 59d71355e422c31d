// Package metrics exposes Prometheus instrumentation for the content store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentstore"

// Save operation labels.
const (
	OpSave     = "save"
	OpSaveMany = "save_many"
)

// Metrics holds every collector of the content store.
// A nil *Metrics is valid for callers that check before recording.
type Metrics struct {
	registry *prometheus.Registry

	// BytesSaved counts payload bytes written to the object store.
	BytesSaved prometheus.Counter

	// Saves counts save calls by operation.
	Saves *prometheus.CounterVec

	// Loads counts content loads.
	Loads prometheus.Counter

	// ObjectsDeleted counts objects removed from the object store.
	ObjectsDeleted prometheus.Counter

	// SplitChildren counts child contents produced by the splitter.
	SplitChildren prometheus.Counter

	// SplitErrors counts failed splits by error kind.
	SplitErrors *prometheus.CounterVec

	// SplitDuration observes how long a split takes.
	SplitDuration prometheus.Histogram
}

// New creates Metrics on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_saved_total",
			Help:      "Total payload bytes written to the object store.",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Total save operations.",
		}, []string{"op"}),
		Loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Total content loads.",
		}),
		ObjectsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_deleted_total",
			Help:      "Total objects removed from the object store.",
		}),
		SplitChildren: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_children_total",
			Help:      "Total child contents produced by the splitter.",
		}),
		SplitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_errors_total",
			Help:      "Total failed splits.",
		}, []string{"kind"}),
		SplitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_duration_seconds",
			Help:      "Time spent splitting content.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.BytesSaved,
		m.Saves,
		m.Loads,
		m.ObjectsDeleted,
		m.SplitChildren,
		m.SplitErrors,
		m.SplitDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordSave records one save operation that wrote the given number of bytes.
func (m *Metrics) RecordSave(op string, bytes int64) {
	m.Saves.WithLabelValues(op).Inc()
	m.BytesSaved.Add(float64(bytes))
}

// RecordSplit records a successful split.
func (m *Metrics) RecordSplit(seconds float64, children int) {
	m.SplitDuration.Observe(seconds)
	m.SplitChildren.Add(float64(children))
}

// RecordSplitError records a failed split of the given kind.
func (m *Metrics) RecordSplitError(kind string) {
	m.SplitErrors.WithLabelValues(kind).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

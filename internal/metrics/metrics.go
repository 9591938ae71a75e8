package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the blockpress metrics. A nil *Collectors is valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	// PostTransitions counts lifecycle operations by transition name.
	PostTransitions *prometheus.CounterVec
	// VersionsCreated counts stored post snapshots.
	VersionsCreated prometheus.Counter
	// PostsPromoted counts scheduled posts published by the sweeper.
	PostsPromoted prometheus.Counter
	// SweepErrors counts failed sweeper runs.
	SweepErrors prometheus.Counter
	// SweepDuration records how long each sweep took.
	SweepDuration prometheus.Histogram
	// CounterFailures counts analytics increments that failed, by counter.
	CounterFailures *prometheus.CounterVec
}

// New registers the collectors on a fresh registry that also carries the Go runtime and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := NewWithRegisterer(reg)
	c.registry = reg
	return c
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		PostTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blockpress_post_transitions_total",
			Help: "Total number of post lifecycle operations by transition",
		}, []string{"transition"}),
		VersionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockpress_post_versions_created_total",
			Help: "Total number of post version snapshots stored",
		}),
		PostsPromoted: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockpress_posts_promoted_total",
			Help: "Total number of scheduled posts promoted to published by the sweeper",
		}),
		SweepErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockpress_sweep_errors_total",
			Help: "Total number of failed publish sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "blockpress_sweep_duration_seconds",
			Help:    "Publish sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CounterFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blockpress_counter_failures_total",
			Help: "Total number of failed analytics counter increments",
		}, []string{"counter"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil || c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Transition records a lifecycle operation.
func (c *Collectors) Transition(name string) {
	if c == nil {
		return
	}
	c.PostTransitions.WithLabelValues(name).Inc()
}

// VersionCreated records a stored snapshot.
func (c *Collectors) VersionCreated() {
	if c == nil {
		return
	}
	c.VersionsCreated.Inc()
}

// ObserveSweep records the outcome of one sweep.
func (c *Collectors) ObserveSweep(started time.Time, promoted int, err error) {
	if c == nil {
		return
	}
	c.SweepDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		c.SweepErrors.Inc()
		return
	}
	c.PostsPromoted.Add(float64(promoted))
}

// CounterFailed records a failed analytics increment.
func (c *Collectors) CounterFailed(counter string) {
	if c == nil {
		return
	}
	c.CounterFailures.WithLabelValues(counter).Inc()
}

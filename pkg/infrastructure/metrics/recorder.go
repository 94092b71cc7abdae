// Package metrics turns allocation lifecycle events into Prometheus metrics
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/events"
)

const namespace = "grouping"

// Recorder owns a registry and updates it from allocation events
type Recorder struct {
	registry *prometheus.Registry

	allocations    *prometheus.CounterVec
	failures       *prometheus.CounterVec
	satisfied      prometheus.Gauge
	itemsUsed      prometheus.Gauge
	modelVariables prometheus.Histogram
	solveDuration  *prometheus.HistogramVec
}

// NewRecorder creates a recorder with a private registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Allocation runs by backend and solver status.",
		}, []string{"backend", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_failures_total",
			Help:      "Allocation runs that ended in an error, by stage.",
		}, []string{"stage"}),
		satisfied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requirements_satisfied",
			Help:      "Requirements satisfied by the most recent solution.",
		}),
		itemsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_used",
			Help:      "Courses and placements used by the most recent solution.",
		}),
		modelVariables: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_variables",
			Help:      "Boolean variables per allocation model.",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 7),
		}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Optimizer wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"backend"}),
	}

	r.registry.MustRegister(
		r.allocations,
		r.failures,
		r.satisfied,
		r.itemsUsed,
		r.modelVariables,
		r.solveDuration,
	)
	return r
}

var _ events.EventHandler = (*Recorder)(nil)

// Subscribe registers the recorder for every lifecycle event on store
func (r *Recorder) Subscribe(store events.EventStore) error {
	if err := store.Subscribe(events.AllLifecycleEvents, r); err != nil {
		return fmt.Errorf("failed to subscribe metrics recorder: %w", err)
	}
	return nil
}

// Unsubscribe detaches the recorder from store
func (r *Recorder) Unsubscribe(store events.EventStore) error {
	if err := store.Unsubscribe(r); err != nil {
		return fmt.Errorf("failed to unsubscribe metrics recorder: %w", err)
	}
	return nil
}

// CanHandle reports whether eventType updates a metric
func (r *Recorder) CanHandle(eventType string) bool {
	switch eventType {
	case events.AllocationModelBuiltEvent, events.AllocationSolvedEvent, events.AllocationFailedEvent:
		return true
	}
	return false
}

// Handle updates the metrics for one event
func (r *Recorder) Handle(event events.Event) error {
	switch data := event.Data().(type) {
	case events.AllocationModelBuilt:
		r.modelVariables.Observe(float64(data.Variables))
	case events.AllocationSolved:
		r.allocations.WithLabelValues(data.Backend, data.Status.String()).Inc()
		r.solveDuration.WithLabelValues(data.Backend).Observe(data.WallTime.Seconds())
		if data.Status.HasSolution() {
			r.satisfied.Set(float64(data.TotalSatisfied))
			r.itemsUsed.Set(float64(data.TotalItems))
		}
	case events.AllocationFailed:
		r.failures.WithLabelValues(data.Stage).Inc()
	case events.AllocationStarted:
	default:
		return fmt.Errorf("unexpected payload %T for event %s", data, event.Type())
	}
	return nil
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry in text format for a node exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(tmp, family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metric %s: %w", family.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move metrics file into place: %w", err)
	}
	return nil
}

// Package metrics exposes Prometheus instrumentation for a debugging
// session. Each Collector owns its registry so sessions never share state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "chronojs"

// Restore outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
	OutcomePartial  = "partial"
)

// Collector holds the session metrics. All methods are safe on a nil
// Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	SnapshotsCaptured *prometheus.CounterVec
	SnapshotsEvicted  prometheus.Counter
	CaptureFailures   *prometheus.CounterVec
	CapturesFiltered  prometheus.Counter
	DegradedValues    prometheus.Counter
	Restores          *prometheus.CounterVec
	TimelineSize      prometheus.Gauge
	CallDuration      prometheus.Histogram
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		SnapshotsCaptured: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "snapshots_captured_total",
			Help:      "Snapshots appended to the timeline by kind",
		}, []string{"kind"}),
		SnapshotsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "snapshots_evicted_total",
			Help:      "Snapshots dropped from a full timeline",
		}),
		CaptureFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "failures_total",
			Help:      "Capture calls that produced no snapshot by operation",
		}, []string{"op"}),
		CapturesFiltered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "filtered_total",
			Help:      "Capture calls skipped by the selective filter",
		}),
		DegradedValues: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "degraded_values_total",
			Help:      "Values captured as unserializable",
		}),
		Restores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "total",
			Help:      "State restores by outcome",
		}, []string{"outcome"}),
		TimelineSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "size",
			Help:      "Snapshots currently retained",
		}),
		CallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "call_duration_seconds",
			Help:      "Guest function durations recorded at exit",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Gather collects the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	if c == nil {
		return nil, nil
	}
	return c.registry.Gather()
}

// SnapshotCaptured records an appended snapshot and how many of its values
// degraded.
func (c *Collector) SnapshotCaptured(kind string, degraded int) {
	if c == nil {
		return
	}
	c.SnapshotsCaptured.WithLabelValues(kind).Inc()
	if degraded > 0 {
		c.DegradedValues.Add(float64(degraded))
	}
}

func (c *Collector) SnapshotEvicted() {
	if c == nil {
		return
	}
	c.SnapshotsEvicted.Inc()
}

func (c *Collector) CaptureFailed(op string) {
	if c == nil {
		return
	}
	c.CaptureFailures.WithLabelValues(op).Inc()
}

func (c *Collector) CaptureFiltered() {
	if c == nil {
		return
	}
	c.CapturesFiltered.Inc()
}

// Restored records one restore with one of the Outcome constants.
func (c *Collector) Restored(outcome string) {
	if c == nil {
		return
	}
	c.Restores.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetTimelineSize(n int) {
	if c == nil {
		return
	}
	c.TimelineSize.Set(float64(n))
}

func (c *Collector) ObserveCallDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.CallDuration.Observe(d.Seconds())
}

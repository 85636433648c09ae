// Package metrics defines the processor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the processor collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	processed     *prometheus.CounterVec
	duration      prometheus.Histogram
	lockConflicts prometheus.Counter
	events        *prometheus.CounterVec
	evaluated     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "achievements_processed_total",
				Help: "Processing runs by final status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "achievements_process_duration_seconds",
				Help:    "Duration of one processing run, lock wait included",
				Buckets: prometheus.DefBuckets,
			},
		),
		lockConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "achievements_lock_conflicts_total",
				Help: "Runs deferred because the user lock was held",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "achievements_events_total",
				Help: "Committed events by type",
			},
			[]string{"type"},
		),
		evaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "achievements_evaluated_total",
				Help: "Achievement definitions evaluated",
			},
		),
	}
	reg.MustRegister(m.processed, m.duration, m.lockConflicts, m.events, m.evaluated)
	return m
}

// ObserveRun records the status and duration of a run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}

// LockConflict counts one deferred run.
func (m *Metrics) LockConflict() {
	if m == nil {
		return
	}
	m.lockConflicts.Inc()
}

// Event counts one committed event.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// Evaluated counts evaluated definitions.
func (m *Metrics) Evaluated(n int) {
	if m == nil {
		return
	}
	m.evaluated.Add(float64(n))
}

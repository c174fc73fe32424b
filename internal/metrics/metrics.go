// Package metrics exposes Prometheus counters for the booking client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "luxeplan"

// Metrics holds the client's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	submissions   *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	newSlots      prometheus.Counter
}

// New creates collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Booking submissions by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_fetch_total",
				Help:      "Availability queries by result.",
			},
			[]string{"result"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "availability_fetch_seconds",
				Help:      "Time to load reserved slots.",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
		),
		newSlots: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_new_slots_total",
				Help:      "Slots reported as newly free by the watcher.",
			},
		),
	}
}

func (m *Metrics) IncSubmission(mode, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, outcome).Inc()
}

// ObserveFetch records one availability query. result is "hit", "miss" or "error".
func (m *Metrics) ObserveFetch(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

func (m *Metrics) AddNewSlots(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.newSlots.Add(float64(n))
}

// Package metrics exposes Prometheus instrumentation for generation runs,
// generation calls, playback and history deletions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_studio"

// Label values for deletion outcomes.
const (
	DeletionSuccess = "success"
	DeletionFailed  = "failed"
	DeletionLocal   = "local"
)

// Metrics holds every collector. It satisfies the recorder interfaces of the
// generation and playback packages.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
	generationCalls  *prometheus.CounterVec
	playbackStarts   *prometheus.CounterVec
	historyDeletions *prometheus.CounterVec
}

// New registers the collectors on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_runs_total",
				Help:      "Generation runs by outcome (success, failed, validation, dropped)",
			},
			[]string{"outcome"},
		),

		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_run_duration_seconds",
				Help:      "Duration of completed generation runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"outcome"},
		),

		runsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generation_runs_in_flight",
				Help:      "Whether a generation run is in flight (0 or 1)",
			},
		),

		generationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_calls_total",
				Help:      "Per-target generation calls by outcome",
			},
			[]string{"outcome"},
		),

		playbackStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playback_starts_total",
				Help:      "Playback attempts by outcome (started, unavailable, failed)",
			},
			[]string{"outcome"},
		),

		historyDeletions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_deletions_total",
				Help:      "History deletions by outcome (success, failed, local)",
			},
			[]string{"outcome"},
		),
	}
}

// RunFinished counts a run. Only runs that entered Running have a duration.
func (m *Metrics) RunFinished(outcome string, duration time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()

	if duration > 0 {
		m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

func (m *Metrics) GenerationCall(outcome string) {
	m.generationCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) InFlight(active bool) {
	if active {
		m.runsInFlight.Set(1)

		return
	}

	m.runsInFlight.Set(0)
}

func (m *Metrics) PlaybackStarted(outcome string) {
	m.playbackStarts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HistoryDeletion(outcome string) {
	m.historyDeletions.WithLabelValues(outcome).Inc()
}

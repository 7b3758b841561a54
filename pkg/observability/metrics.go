package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements the runtime's execution counters on Prometheus.
type Metrics struct {
	turnsStarted  prometheus.Counter
	turnsFinished *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	blockSteps    *prometheus.CounterVec
}

// NewMetrics registers the collectors on the given registerer
// (prometheus.DefaultRegisterer for the common case).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwalk",
			Name:      "turns_started_total",
			Help:      "Turns the engine began processing.",
		}),
		turnsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwalk",
			Name:      "turns_finished_total",
			Help:      "Turns finished, by outcome.",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatwalk",
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent processing a turn.",
			Buckets:   prometheus.DefBuckets,
		}),
		blockSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwalk",
			Name:      "block_steps_total",
			Help:      "Blocks executed, by block type.",
		}, []string{"type"}),
	}
}

// TurnStarted counts a turn entering the interpreter.
func (m *Metrics) TurnStarted() {
	m.turnsStarted.Inc()
}

// TurnFinished records a finished turn and its outcome.
func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	m.turnsFinished.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// BlockExecuted counts one block step.
func (m *Metrics) BlockExecuted(blockType string) {
	m.blockSteps.WithLabelValues(blockType).Inc()
}

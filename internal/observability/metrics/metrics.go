package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus instruments. A nil *Metrics is a
// valid no-op so tests and tools can skip registration.
type Metrics struct {
	turnsProcessed *prometheus.CounterVec
	turnLatency    prometheus.Histogram
	nluFallbacks   prometheus.Counter
	nluFailures    prometheus.Counter
	nudgesSent     *prometheus.CounterVec
	nudgesSkipped  *prometheus.CounterVec
}

// New registers the engine instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadengine_turns_processed_total",
			Help: "Inbound turns processed, by tenant and resulting state.",
		}, []string{"tenant_id", "state"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadengine_turn_duration_seconds",
			Help:    "Wall time to process one inbound turn.",
			Buckets: prometheus.DefBuckets,
		}),
		nluFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadengine_nlu_fallbacks_total",
			Help: "Turns where pattern extraction substituted for the NLU service.",
		}),
		nluFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadengine_nlu_failures_total",
			Help: "NLU extraction calls that errored or timed out.",
		}),
		nudgesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadengine_nudges_sent_total",
			Help: "Re-engagement nudges delivered, by tenant.",
		}, []string{"tenant_id"}),
		nudgesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadengine_nudges_skipped_total",
			Help: "Nudges skipped, by reason (quota, delivery, cap).",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.turnsProcessed, m.turnLatency, m.nluFallbacks, m.nluFailures, m.nudgesSent, m.nudgesSkipped)
	return m
}

func (m *Metrics) TurnProcessed(tenantID, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsProcessed.WithLabelValues(tenantID, state).Inc()
	m.turnLatency.Observe(d.Seconds())
}

func (m *Metrics) NLUFallback() {
	if m == nil {
		return
	}
	m.nluFallbacks.Inc()
}

func (m *Metrics) NLUFailure() {
	if m == nil {
		return
	}
	m.nluFailures.Inc()
}

func (m *Metrics) NudgeSent(tenantID string) {
	if m == nil {
		return
	}
	m.nudgesSent.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) NudgeSkipped(reason string) {
	if m == nil {
		return
	}
	m.nudgesSkipped.WithLabelValues(reason).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StageMetrics records verification stage and intent outcome data.
type StageMetrics struct {
	stageDuration *prometheus.HistogramVec
	stageResult   *prometheus.CounterVec
	intentOutcome *prometheus.CounterVec
}

// NewStageMetrics registers the stage metrics on the provided registerer.
func NewStageMetrics(reg prometheus.Registerer) *StageMetrics {
	if reg == nil {
		return &StageMetrics{}
	}
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "verification_stage_duration_seconds",
		Help:    "Simulated duration of verification stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	stageResult := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_stage_results",
		Help: "Terminal verification stage results by stage and status.",
	}, []string{"stage", "status"})
	intentOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intent_outcomes",
		Help: "Finalized payment intent outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(stageDuration, stageResult, intentOutcome)
	return &StageMetrics{
		stageDuration: stageDuration,
		stageResult:   stageResult,
		intentOutcome: intentOutcome,
	}
}

// ObserveStage records one terminal stage with its simulated duration.
func (m *StageMetrics) ObserveStage(stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.stageDuration != nil {
		m.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
	}
	if m.stageResult != nil {
		m.stageResult.WithLabelValues(normalizeLabel(stage), normalizeLabel(status)).Inc()
	}
}

// IncIntentOutcome counts a finalized intent.
func (m *StageMetrics) IncIntentOutcome(outcome string) {
	if m == nil || m.intentOutcome == nil {
		return
	}
	m.intentOutcome.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records metadata for background sweep jobs.
type SweeperMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	purged   *prometheus.CounterVec
}

// NewSweeperMetrics registers the sweep job metrics on the provided registerer.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_job_duration_seconds",
		Help:    "Duration of sweep jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_job_success",
		Help: "Successful sweep job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_job_failure",
		Help: "Failed sweep job executions.",
	}, []string{"job"})
	purged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_job_purged_records",
		Help: "Records purged by sweep jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, purged)
	return &SweeperMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		purged:   purged,
	}
}

// ObserveDuration records the duration for the named job.
func (m *SweeperMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *SweeperMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *SweeperMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddPurged counts records removed by the named job.
func (m *SweeperMetrics) AddPurged(job string, count int) {
	if m == nil || m.purged == nil || count <= 0 {
		return
	}
	m.purged.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

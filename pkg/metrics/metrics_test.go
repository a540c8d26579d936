package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStageMetricsExportsDurationAndResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStageMetrics(reg)

	m.ObserveStage("anti_fraud", "completed", 750*time.Millisecond)
	m.ObserveStage("capture", "failed", 250*time.Millisecond)
	m.IncIntentOutcome("succeeded")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "verification_stage_results", "stage", "anti_fraud"); err != nil {
		t.Fatalf("fetch stage result: %v", err)
	} else if got != 1 {
		t.Fatalf("expected anti_fraud result=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_intent_outcomes", "outcome", "succeeded"); err != nil {
		t.Fatalf("fetch outcome: %v", err)
	} else if got != 1 {
		t.Fatalf("expected succeeded=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "verification_stage_duration_seconds", "stage", "anti_fraud"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestSweeperMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSweeperMetrics(reg)
	job := "idempotency-sweep"

	m.ObserveDuration(job, 50*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.AddPurged(job, 12)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sweep_job_success", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sweep_job_purged_records", "job", job); err != nil {
		t.Fatalf("fetch purged: %v", err)
	} else if got != 12 {
		t.Fatalf("expected purged=12, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var stage *StageMetrics
	stage.ObserveStage("anti_fraud", "completed", time.Second)
	stage.IncIntentOutcome("failed")

	empty := NewSweeperMetrics(nil)
	empty.IncSuccess("noop")
	empty.AddPurged("noop", 3)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

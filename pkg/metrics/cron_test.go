package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsRunsAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "order-expiry"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncFailure(job)
	metrics.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "shopchat_cron_job_runs_total", "outcome", "success"); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "shopchat_cron_job_runs_total", "outcome", "failure"); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 2 {
		t.Fatalf("expected failure=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "shopchat_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	last := findMetricFamily(mfs, "shopchat_cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp to be set")
	}
	skipped := findMetricFamily(mfs, "shopchat_cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveDuration("job", time.Second)
	m.IncSuccess("job")
	m.IncFailure("job")
	m.IncSkipped()
	NewCronJobMetrics(nil).IncSkipped()
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
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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

func TestAssistantMetricsCountsToolCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)
	m.IncToolCall("create_order", true)
	m.IncToolCall("create_order", false)
	m.IncOutcome("answered")
	m.ObserveRounds(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "shopchat_assistant_tool_calls_total", "result", "failure"); err != nil || got != 1 {
		t.Fatalf("expected one failed tool call, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "shopchat_assistant_replies_total", "outcome", "answered"); err != nil || got != 1 {
		t.Fatalf("expected one answered reply, got %f err=%v", got, err)
	}
}

func TestCommerceMetricsNilSafe(t *testing.T) {
	var m *CommerceMetrics
	m.IncReservation(true)
	m.IncTransition("cancelled")
	m.IncWebhook("paid")

	unregistered := NewCommerceMetrics(nil)
	unregistered.IncReservation(false)
}

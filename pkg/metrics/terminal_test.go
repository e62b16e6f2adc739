package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTerminalMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTerminalMetrics(reg)

	metrics.ObserveDrain("auto", 120*time.Millisecond)
	metrics.IncAcked("auto")
	metrics.IncFailed("auto")
	metrics.SetPending(3)
	metrics.IncAttempt("cash", "succeeded")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sync_sales_acked", "trigger", "auto"); err != nil {
		t.Fatalf("fetch acked: %v", err)
	} else if got != 1 {
		t.Fatalf("expected acked=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sync_sales_failed", "trigger", "auto"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "sync_drain_duration_seconds", "trigger", "auto"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	pending := findMetricFamily(mfs, "sync_pending_sales")
	if pending == nil || len(pending.GetMetric()) == 0 {
		t.Fatal("pending gauge missing")
	}
	if got := pending.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected pending=3, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var metrics *TerminalMetrics
	metrics.ObserveDrain("auto", time.Second)
	metrics.IncAcked("auto")
	metrics.IncFailed("auto")
	metrics.SetPending(1)
	metrics.IncAttempt("cash", "failed")
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
	return 0, fmt.Errorf("label %s=%s not found for %q", label, value, name)
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
	return 0, fmt.Errorf("label %s=%s not found for %q", label, value, name)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(pairs []*dto.LabelPair, label, value string) bool {
	for _, pair := range pairs {
		if pair.GetName() == label && pair.GetValue() == value {
			return true
		}
	}
	return false
}

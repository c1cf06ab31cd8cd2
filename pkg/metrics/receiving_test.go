package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestReceivingMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReceivingMetrics(reg)

	metrics.ObservePersistence("grn", "save", 120*time.Millisecond, nil)
	metrics.ObservePersistence("grn", "save", 80*time.Millisecond, errors.New("boom"))
	metrics.IncSaved("grn")
	metrics.IncSaved("grn")
	metrics.IncDeleted("qc")
	metrics.IncRejection("grn", "goodQuantity")
	metrics.IncAnomaly("qc", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "receiving_sessions_saved_total", map[string]string{"workflow": "grn"}); err != nil {
		t.Fatalf("fetch saved: %v", err)
	} else if got != 2 {
		t.Fatalf("expected saved=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "receiving_sessions_deleted_total", map[string]string{"workflow": "qc"}); err != nil {
		t.Fatalf("fetch deleted: %v", err)
	} else if got != 1 {
		t.Fatalf("expected deleted=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "receiving_entry_rejections_total", map[string]string{"workflow": "grn", "field": "goodQuantity"}); err != nil {
		t.Fatalf("fetch rejections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejections=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "receiving_integrity_anomalies_total", map[string]string{"workflow": "qc", "kind": "unknown"}); err != nil {
		t.Fatalf("fetch anomalies: %v", err)
	} else if got != 1 {
		t.Fatalf("expected anomalies=1, got %f", got)
	}

	if got, err := fetchHistogramCount(mfs, "receiving_persistence_duration_seconds", map[string]string{"operation": "save", "outcome": "error"}); err != nil {
		t.Fatalf("fetch histogram: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one failed save observation, got %d", got)
	}
}

func TestReceivingMetricsNilSafe(t *testing.T) {
	var metrics *ReceivingMetrics
	metrics.IncSaved("grn")
	metrics.ObservePersistence("grn", "load", time.Second, nil)

	unregistered := NewReceivingMetrics(nil)
	unregistered.IncRejection("qc", "samples_ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramCount(mfs []*dto.MetricFamily, name string, labels map[string]string) (uint64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleCount(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok {
			if pair.GetValue() != value {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/ports"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	return NewPrometheusMetrics(prometheus.NewRegistry())
}

// TestNewPrometheusMetrics verifies that every collector is initialized and
// that separate registries do not conflict.
func TestNewPrometheusMetrics(t *testing.T) {
	pm := newTestMetrics(t)

	assert.NotNil(t, pm.unitLatency)
	assert.NotNil(t, pm.subjectOutcomes)
	assert.NotNil(t, pm.operationCounter)
	assert.NotNil(t, pm.scoreValues)
	assert.NotNil(t, pm.groupGauges)
	assert.NotNil(t, pm.stateGauges)

	var _ ports.MetricsCollector = pm
	assert.NotPanics(t, func() { newTestMetrics(t) })
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	tests := []struct {
		name     string
		labels   map[string]string
		wantUnit string
	}{
		{name: "unit label", labels: map[string]string{"unit": "aggregate"}, wantUnit: "aggregate"},
		{name: "missing unit label", labels: map[string]string{"other": "x"}, wantUnit: "unknown"},
		{name: "empty unit label", labels: map[string]string{"unit": ""}, wantUnit: "unknown"},
		{name: "nil labels", labels: nil, wantUnit: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := newTestMetrics(t)
			pm.RecordLatency(MetricUnitExecution, 150*time.Millisecond, tt.labels)

			assert.Equal(t, 1, testutil.CollectAndCount(pm.unitLatency))
			_, err := pm.unitLatency.GetMetricWithLabelValues(MetricUnitExecution, tt.wantUnit)
			require.NoError(t, err)
		})
	}
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm := newTestMetrics(t)

	pm.RecordCounter(MetricSubjectsProcessed, 3, map[string]string{"unit": "ingest"})
	pm.RecordCounter(MetricSubjectsProcessed, 2, map[string]string{"unit": "ingest"})
	pm.RecordCounter(MetricSubjectsFailed, 1, map[string]string{"unit": "ingest"})
	pm.RecordCounter(MetricUnitExecution, 1, map[string]string{"unit": "rank", "status": "error"})
	pm.RecordCounter(MetricUnitExecution, 1, map[string]string{"unit": "rank"})

	assert.Equal(t, 5.0, testutil.ToFloat64(pm.subjectOutcomes.WithLabelValues("ingest", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.subjectOutcomes.WithLabelValues("ingest", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues(MetricUnitExecution, "error", "rank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues(MetricUnitExecution, "success", "rank")),
		"status defaults to success")
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm := newTestMetrics(t)

	labels := map[string]string{"unit": "summary", "metric": "composite", "group": "1"}
	pm.RecordGauge(MetricGroupMean, 71.5, labels)
	pm.RecordGauge(MetricGroupMean, 72.5, labels)
	pm.RecordGauge(MetricGroupCount, 4, labels)
	pm.RecordGauge("active_subjects", 12, map[string]string{"unit": "rank"})

	assert.Equal(t, 72.5, testutil.ToFloat64(pm.groupGauges.WithLabelValues("mean", "composite", "1")),
		"gauges keep the latest value")
	assert.Equal(t, 4.0, testutil.ToFloat64(pm.groupGauges.WithLabelValues("count", "composite", "1")))
	assert.Equal(t, 12.0, testutil.ToFloat64(pm.stateGauges.WithLabelValues("active_subjects", "rank")))
}

func TestPrometheusMetrics_RecordHistogram(t *testing.T) {
	pm := newTestMetrics(t)

	pm.RecordHistogram(MetricScore, 79.8, map[string]string{"unit": "combine", "metric": "total"})
	pm.RecordHistogram(MetricScore, 3.6, map[string]string{"unit": "combine"})

	assert.Equal(t, 2, testutil.CollectAndCount(pm.scoreValues))
	_, err := pm.scoreValues.GetMetricWithLabelValues("total", "combine")
	require.NoError(t, err)
	_, err = pm.scoreValues.GetMetricWithLabelValues(MetricScore, "combine")
	require.NoError(t, err, "metric label falls back to the metric name")
}

func TestPrometheusMetrics_ConcurrentRecording(t *testing.T) {
	pm := newTestMetrics(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				pm.RecordCounter(MetricSubjectsProcessed, 1, map[string]string{"unit": "aggregate"})
				pm.RecordLatency(MetricUnitExecution, time.Millisecond, map[string]string{"unit": "aggregate"})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Equal(t, 800.0, testutil.ToFloat64(pm.subjectOutcomes.WithLabelValues("aggregate", "processed")))
}

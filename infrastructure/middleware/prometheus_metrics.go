// Package middleware provides cross-cutting concerns for the run engine:
// metrics collection and unit instrumentation.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tally/internal/ports"
)

// Metric names understood by PrometheusMetrics. Other names fall through to
// the generic operation counter and state gauge.
const (
	MetricUnitExecution     = "unit_execute"
	MetricSubjectsProcessed = "subjects_processed"
	MetricSubjectsFailed    = "subjects_failed"
	MetricScore             = "score"
	MetricGroupMean         = "group_mean"
	MetricGroupCount        = "group_count"
)

// scoreBuckets cover course grades (0-100) as well as the small composite
// ranges of image metrics.
var scoreBuckets = []float64{-1, 0, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 60, 70, 80, 90, 100}

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks unit latency, per-subject outcomes, score distributions and
// group statistics of a run.
type PrometheusMetrics struct {
	unitLatency      *prometheus.HistogramVec
	subjectOutcomes  *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	scoreValues      *prometheus.HistogramVec
	groupGauges      *prometheus.GaugeVec
	stateGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// its collectors with reg. A nil reg uses the default Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		unitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_unit_duration_seconds",
				Help:    "Execution time of pipeline units.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		subjectOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_subjects_total",
				Help: "Subjects handled per unit, by outcome.",
			},
			[]string{"unit", "outcome"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_operations_total",
				Help: "Total number of engine operations.",
			},
			[]string{"operation", "status", "unit"},
		),
		scoreValues: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_score_value",
				Help:    "Distribution of composite and ranking scores.",
				Buckets: scoreBuckets,
			},
			[]string{"metric", "unit"},
		),
		groupGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tally_group_statistic",
				Help: "Latest group statistics per metric and group.",
			},
			[]string{"statistic", "metric", "group"},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tally_run_state",
				Help: "Current run state values.",
			},
			[]string{"metric", "unit"},
		),
	}
}

func unitLabel(labels map[string]string) string {
	if unit, ok := labels["unit"]; ok && unit != "" {
		return unit
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.unitLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	unit := unitLabel(labels)
	switch metric {
	case MetricSubjectsProcessed:
		pm.subjectOutcomes.WithLabelValues(unit, "processed").Add(value)
	case MetricSubjectsFailed:
		pm.subjectOutcomes.WithLabelValues(unit, "failed").Add(value)
	default:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status, unit).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricGroupMean:
		pm.groupGauges.WithLabelValues("mean", labels["metric"], labels["group"]).Set(value)
	case MetricGroupCount:
		pm.groupGauges.WithLabelValues("count", labels["metric"], labels["group"]).Set(value)
	default:
		pm.stateGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in the score histogram. The "metric" label distinguishes the
// composite from single-category sources.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	name := labels["metric"]
	if name == "" {
		name = metric
	}
	pm.scoreValues.WithLabelValues(name, unitLabel(labels)).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

package testutils

import (
	"maps"
	"sync"
	"time"

	"github.com/ahrav/go-tally/internal/ports"
)

// Metric call kinds recorded by RecordingMetrics.
const (
	KindLatency   = "latency"
	KindCounter   = "counter"
	KindGauge     = "gauge"
	KindHistogram = "histogram"
)

// MetricCall is one call made to a MetricsCollector. Latencies are stored
// in seconds.
type MetricCall struct {
	Kind   string
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics is a thread-safe MetricsCollector that keeps every call
// for later assertions.
type RecordingMetrics struct {
	mu    sync.Mutex
	calls []MetricCall
}

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// NewRecordingMetrics returns an empty recorder.
func NewRecordingMetrics() *RecordingMetrics { return &RecordingMetrics{} }

func (r *RecordingMetrics) record(kind, name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, MetricCall{Kind: kind, Name: name, Value: value, Labels: maps.Clone(labels)})
}

func (r *RecordingMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	r.record(KindLatency, operation, duration.Seconds(), labels)
}

func (r *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.record(KindCounter, metric, value, labels)
}

func (r *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.record(KindGauge, metric, value, labels)
}

func (r *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.record(KindHistogram, metric, value, labels)
}

// Calls returns a copy of all recorded calls in order.
func (r *RecordingMetrics) Calls() []MetricCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MetricCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// Find returns the calls of kind named name.
func (r *RecordingMetrics) Find(kind, name string) []MetricCall {
	var out []MetricCall
	for _, c := range r.Calls() {
		if c.Kind == kind && c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Sum adds up the values of the calls of kind named name whose labels
// include every pair in match.
func (r *RecordingMetrics) Sum(kind, name string, match map[string]string) float64 {
	var total float64
	for _, c := range r.Find(kind, name) {
		ok := true
		for k, v := range match {
			if c.Labels[k] != v {
				ok = false
				break
			}
		}
		if ok {
			total += c.Value
		}
	}
	return total
}

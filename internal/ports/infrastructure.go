package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tally/internal/domain"
)

// TableReader loads raw tabular input from a spreadsheet or delimited file.
type TableReader interface {
	// Read returns the first sheet (or the configured sheet) as a table
	// whose first row is the header.
	Read(ctx context.Context) (domain.Table, error)
}

// TableWriter persists named tables. Spreadsheet writers emit one sheet per
// table; delimited writers accept a single table.
type TableWriter interface {
	Write(ctx context.Context, tables ...domain.NamedTable) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric, such as subjects scored
	// or subjects failed.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as composite
	// score distributions.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

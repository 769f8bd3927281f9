package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors raised by the tabular adapters.
var (
	// ErrUnsupportedFormat indicates a file extension with no reader or writer.
	ErrUnsupportedFormat = errors.New("unsupported table format")

	// ErrColumnNotFound indicates that a configured column could not be
	// resolved against a table header.
	ErrColumnNotFound = errors.New("column not found")

	// ErrEmptyTable indicates an input without a header row.
	ErrEmptyTable = errors.New("empty table")

	// ErrDuplicateColumn indicates a header naming the same column twice.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// TableError represents an error reading or writing a table.
// Row and Column are zero when they do not apply.
type TableError struct {
	// Path is the file the table was read from or written to.
	Path string

	// Row is the 1-based row that caused the error.
	Row int

	// Column is the column name or "#N" position involved.
	Column string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for TableError.
func (e *TableError) Error() string {
	msg := fmt.Sprintf("table error: path=%s", e.Path)
	if e.Row > 0 {
		msg += fmt.Sprintf(", row=%d", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(", column=%s", e.Column)
	}
	return msg + fmt.Sprintf(", err=%v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TableError) Unwrap() error { return e.Err }

// NewTableError creates a new TableError for path.
func NewTableError(path string, err error) *TableError {
	return &TableError{Path: path, Err: err}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

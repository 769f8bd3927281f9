package domain

import (
	"fmt"
	"math"
)

// Direction records whether a larger raw value is better or worse for a
// category or metric.
type Direction string

const (
	// HigherBetter marks metrics where larger values are preferred
	// (HPSv2, ImageReward, SSIM, course averages).
	HigherBetter Direction = "higher_better"

	// LowerBetter marks metrics where smaller values are preferred
	// (FID, LPIPS).
	LowerBetter Direction = "lower_better"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool { return d == HigherBetter || d == LowerBetter }

// String returns the string form of the direction.
func (d Direction) String() string { return string(d) }

// Measurement is an atomic scalar fact produced by an external scorer or a
// grade source. Measurements are immutable once ingested.
type Measurement struct {
	// SubjectID identifies the student or image the value belongs to.
	SubjectID string `json:"subject_id"`

	// Category groups measurements that share an averaging rule, for
	// example "degree" or a single metric name such as "HPSv2".
	Category string `json:"category"`

	// Metric is the name of the raw measurement column.
	Metric string `json:"metric"`

	// Value is the raw scalar.
	Value float64 `json:"value"`

	// Weight is the credit or weight used for averaging. Must be >= 0.
	Weight float64 `json:"weight"`

	// Direction is informational for the aggregator; the composite
	// combiner carries it per term.
	Direction Direction `json:"direction"`
}

// Validate checks the invariants every measurement must satisfy before it
// reaches the aggregator. It returns a *MeasurementError wrapping
// ErrInvalidMeasurement on failure.
func (m Measurement) Validate() error {
	switch {
	case math.IsNaN(m.Value) || math.IsInf(m.Value, 0):
		return NewMeasurementError(m, fmt.Sprintf("value is not finite: %v", m.Value))
	case math.IsNaN(m.Weight) || math.IsInf(m.Weight, 0):
		return NewMeasurementError(m, fmt.Sprintf("weight is not finite: %v", m.Weight))
	case m.Weight < 0:
		return NewMeasurementError(m, fmt.Sprintf("weight is negative: %v", m.Weight))
	}
	return nil
}

// Subject is an entity being scored: a student or a generated image.
type Subject struct {
	// ID is the stable key (student number, file name).
	ID string `json:"id"`

	// Label is a display label (name, file path).
	Label string `json:"label"`

	// Group is the external classification tag used for summaries
	// (course type, parameter configuration type). Fixed at ingestion.
	Group string `json:"group"`

	// ExternalRank is a rank supplied by an external model, 0 when absent.
	ExternalRank int `json:"external_rank,omitempty"`

	// Order is the zero-based position at which the subject was first seen.
	Order int `json:"order"`
}

// Table is raw tabular input or output: a header row plus data rows.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NamedTable pairs a table with the sheet or file name it is written as.
type NamedTable struct {
	Name  string
	Table Table
}

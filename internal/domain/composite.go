package domain

import (
	"fmt"
	"math"
)

// unitSumTolerance bounds floating point drift when checking that
// fractional weights add up to one.
const unitSumTolerance = 1e-9

// CompositeTerm is one (name, multiplier, direction) entry of a
// CompositeSpec.
type CompositeTerm struct {
	// Name is the category or metric the term reads from the aggregate map.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Multiplier scales the aggregate. It encodes both importance and unit
	// normalization, and, for lower_better metrics, the caller's chosen
	// polarity.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Direction documents the metric's polarity. The combiner does not
	// invert lower_better values; see Combine.
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=higher_better lower_better"`
}

// CompositeSpec is the fixed set of terms used to build comparable
// composite scores across all subjects of a run.
type CompositeSpec struct {
	Name  string          `yaml:"name" json:"name"`
	Terms []CompositeTerm `yaml:"terms" json:"terms"`

	// Scale multiplies the summed terms. Zero is treated as 1.
	Scale float64 `yaml:"scale" json:"scale"`
}

// CompositeScore is the combined value for one subject.
type CompositeScore struct {
	SubjectID string  `json:"subject_id"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
}

// Combine sums multiplier·aggregate over the terms in order and applies the
// composite scale.
//
// Direction contract: every contribution is multiplier·value regardless of
// the term's direction. A lower_better metric such as FID is never negated;
// callers that want "smaller is better" to lower the composite must say so
// through the multiplier's sign. The direction field is carried so the
// choice is explicit and checkable, not so the combiner can act on it.
//
// Combine returns ErrMissingCategory when a term is absent from aggregates
// and ErrInvalidMeasurement when an aggregate or multiplier is not finite.
func (s CompositeSpec) Combine(aggregates map[string]float64) (float64, error) {
	var total float64
	for _, term := range s.Terms {
		value, ok := aggregates[term.Name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingCategory, term.Name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, fmt.Errorf("%w: aggregate %q is not finite: %v", ErrInvalidMeasurement, term.Name, value)
		}
		if math.IsNaN(term.Multiplier) || math.IsInf(term.Multiplier, 0) {
			return 0, fmt.Errorf("%w: multiplier for %q is not finite", ErrInvalidMeasurement, term.Name)
		}
		total += term.Multiplier * value
	}
	return total * s.scale(), nil
}

// Combine is the functional form of CompositeSpec.Combine with a unit scale.
func Combine(aggregates map[string]float64, terms []CompositeTerm) (float64, error) {
	return CompositeSpec{Terms: terms}.Combine(aggregates)
}

// Contribution returns the amount a single term adds for the given value,
// before the composite scale.
func (t CompositeTerm) Contribution(value float64) float64 { return t.Multiplier * value }

// FractionalWeights reports whether the multipliers sum to 1, the shape
// used by the grade calculator (0.7 degree + 0.3 non-degree).
func (s CompositeSpec) FractionalWeights() bool {
	var sum float64
	for _, term := range s.Terms {
		sum += term.Multiplier
	}
	return math.Abs(sum-1) <= unitSumTolerance
}

// Validate checks the structure of s: at least one term,
// unique term names, known directions and finite multipliers.
func (s CompositeSpec) Validate() error {
	verr := NewValidationError("composite " + s.Name)
	if len(s.Terms) == 0 {
		verr.AddError("at least one term is required")
	}
	seen := make(map[string]struct{}, len(s.Terms))
	for i, term := range s.Terms {
		if term.Name == "" {
			verr.AddError(fmt.Sprintf("term %d has no name", i))
		}
		if _, dup := seen[term.Name]; dup {
			verr.AddError(fmt.Sprintf("duplicate term %q", term.Name))
		}
		seen[term.Name] = struct{}{}
		if !term.Direction.Valid() {
			verr.AddError(fmt.Sprintf("term %q has unknown direction %q", term.Name, term.Direction))
		}
		if math.IsNaN(term.Multiplier) || math.IsInf(term.Multiplier, 0) {
			verr.AddError(fmt.Sprintf("term %q multiplier is not finite", term.Name))
		}
	}
	if s.Scale < 0 || math.IsNaN(s.Scale) || math.IsInf(s.Scale, 0) {
		verr.AddError(fmt.Sprintf("scale must be a finite non-negative number, got %v", s.Scale))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s CompositeSpec) scale() float64 {
	if s.Scale == 0 {
		return 1
	}
	return s.Scale
}

// Round rounds v half away from zero to the given number of decimal places.
// It is applied only when values leave the engine for reporting.
func Round(v float64, places int) float64 {
	if places < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

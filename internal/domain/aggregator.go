package domain

// CategoryAggregate is the weighted mean of all measurements sharing
// (SubjectID, Category).
type CategoryAggregate struct {
	SubjectID string `json:"subject_id"`
	Category  string `json:"category"`

	// Value is Σ(value·weight)/Σ(weight), or 0 when Σ(weight) is 0.
	Value float64 `json:"value"`

	// TotalWeight is Σ(weight), the credit total.
	TotalWeight float64 `json:"total_weight"`

	// Count is the number of measurements aggregated.
	Count int `json:"count"`
}

// Aggregator combines the measurements of one (subject, category) pair into
// a single CategoryAggregate. Implementations must be pure: the same input
// always yields the same aggregate and the input slice is not modified.
//
// Edge cases every implementation must honor:
//   - An empty slice yields a zero aggregate, not an error.
//   - A negative weight or non-finite value yields ErrInvalidMeasurement.
//
// Example:
//
//	ms := []Measurement{{Value: 80, Weight: 3}, {Value: 90, Weight: 2}}
//	agg, err := WeightedMean{}.Aggregate("s1", "degree", ms)
//	// agg.Value == 84
type Aggregator interface {
	Aggregate(subjectID, category string, measurements []Measurement) (CategoryAggregate, error)
}

var _ Aggregator = WeightedMean{}

// WeightedMean is the credit-weighted averaging rule.
type WeightedMean struct{}

// Aggregate computes Σ(value·weight)/Σ(weight). When the input is empty or
// the weights sum to zero the value is 0.
func (WeightedMean) Aggregate(subjectID, category string, measurements []Measurement) (CategoryAggregate, error) {
	agg := CategoryAggregate{SubjectID: subjectID, Category: category}

	var weightedSum float64
	for _, m := range measurements {
		if err := m.Validate(); err != nil {
			return CategoryAggregate{}, err
		}
		weightedSum += m.Value * m.Weight
		agg.TotalWeight += m.Weight
		agg.Count++
	}

	if agg.TotalWeight > 0 {
		agg.Value = weightedSum / agg.TotalWeight
	}
	return agg, nil
}

// AggregateCategory is a convenience wrapper around WeightedMean.
func AggregateCategory(subjectID, category string, measurements []Measurement) (CategoryAggregate, error) {
	return WeightedMean{}.Aggregate(subjectID, category, measurements)
}

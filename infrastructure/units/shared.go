// Package units provides the processing stages of a run: ingestion,
// weighted averaging, composite combination, ranking and group statistics.
// Every unit implements ports.Unit.
package units

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/internal/domain"
)

// Unit type names used in run configurations.
const (
	TypeIngest       = "ingest"
	TypeWeightedMean = "weighted_mean"
	TypeComposite    = "composite"
	TypeRank         = "rank"
	TypeGroupStats   = "group_stats"
)

// SourceComposite selects the composite score as a ranking or statistics
// source. Any other source name refers to an aggregate category.
const SourceComposite = "composite"

// Common errors returned by units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrInvalidShape is returned when an ingest configuration lacks the
	// columns its shape needs.
	ErrInvalidShape = errors.New("invalid ingest shape configuration")

	// ErrNotUnitSum is returned when require_unit_sum is set and the
	// composite multipliers do not add up to one.
	ErrNotUnitSum = errors.New("composite multipliers do not sum to 1")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// overlayConfig decodes a loosely typed parameter map on top of defaults.
// Fields absent from config keep their default values.
func overlayConfig[T any](config map[string]any, defaults T) (T, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return defaults, fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("parse config: %w", err)
	}
	return defaults, nil
}

// subjectFailure builds the failure record for a subject skipped by stage.
func subjectFailure(stage, subjectID string, kind domain.FailureKind, err error) domain.SubjectFailure {
	return domain.SubjectFailure{
		SubjectID: subjectID,
		Stage:     stage,
		Kind:      kind,
		Reason:    err.Error(),
	}
}

// failureKind maps a domain error to the failure classification.
func failureKind(err error) domain.FailureKind {
	switch {
	case errors.Is(err, domain.ErrMissingCategory):
		return domain.FailureMissingCategory
	case errors.Is(err, domain.ErrInvalidMeasurement):
		return domain.FailureInvalidMeasurement
	default:
		return domain.FailureIngest
	}
}

// scoreSource returns subject→score for a ranking or statistics source:
// the composite scores when source is SourceComposite, otherwise the
// aggregates of the category named source.
func scoreSource(state domain.State, stage, source string) (map[string]float64, error) {
	scores := make(map[string]float64)
	if source == SourceComposite {
		composites, ok := domain.Get(state, domain.KeyComposites)
		if !ok {
			return nil, domain.MissingStateError(domain.KeyComposites, stage)
		}
		for _, c := range composites {
			scores[c.SubjectID] = c.Value
		}
		return scores, nil
	}

	aggregates, ok := domain.Get(state, domain.KeyAggregates)
	if !ok {
		return nil, domain.MissingStateError(domain.KeyAggregates, stage)
	}
	for _, a := range aggregates {
		if a.Category == source {
			scores[a.SubjectID] = a.Value
		}
	}
	return scores, nil
}

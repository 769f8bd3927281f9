package units

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*WeightedMeanUnit)(nil)

// WeightedMeanUnit aggregates each subject's measurements per category with
// credit-weighted averaging: Σ(value·weight)/Σ(weight), or 0 when the
// weights sum to zero.
//
// Subjects are aggregated concurrently, but every result is written to the
// slot of its subject so the output order always follows ingestion order.
// A subject holding an invalid measurement is recorded as failed and
// skipped; the remaining subjects are unaffected.
type WeightedMeanUnit struct {
	name       string
	config     WeightedMeanConfig
	aggregator domain.Aggregator
}

// WeightedMeanConfig controls category aggregation.
type WeightedMeanConfig struct {
	// Categories are emitted for every subject, with value 0 when the
	// subject has no measurement in the category. Other categories are
	// emitted only where measurements exist.
	Categories []string `yaml:"categories" json:"categories" validate:"omitempty,unique,dive,required"`

	// MaxConcurrency bounds the number of subjects aggregated at once.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=256"`
}

// NewWeightedMeanUnit creates a new WeightedMeanUnit using domain.WeightedMean.
func NewWeightedMeanUnit(name string, config WeightedMeanConfig) (*WeightedMeanUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &WeightedMeanUnit{name: name, config: config, aggregator: domain.WeightedMean{}}, nil
}

// Name returns the unit id.
func (wu *WeightedMeanUnit) Name() string { return wu.name }

type subjectAggregates struct {
	aggregates []domain.CategoryAggregate
	failure    *domain.SubjectFailure
}

// Execute reads domain.KeyMeasurements and writes domain.KeyAggregates.
func (wu *WeightedMeanUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	measurements, ok := domain.Get(state, domain.KeyMeasurements)
	if !ok {
		return state, domain.MissingStateError(domain.KeyMeasurements, wu.name)
	}
	subjects := state.ActiveSubjects()

	bySubject := make(map[string][]domain.Measurement, len(subjects))
	for _, m := range measurements {
		bySubject[m.SubjectID] = append(bySubject[m.SubjectID], m)
	}

	results := make([]subjectAggregates, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wu.config.MaxConcurrency)

	for i, subj := range subjects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			aggs, err := wu.aggregateSubject(subj.ID, bySubject[subj.ID])
			if err != nil {
				f := subjectFailure(wu.name, subj.ID, failureKind(err), err)
				results[i] = subjectAggregates{failure: &f}
				return nil
			}
			results[i] = subjectAggregates{aggregates: aggs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, err
	}

	var (
		aggregates []domain.CategoryAggregate
		failures   []domain.SubjectFailure
	)
	for _, r := range results {
		if r.failure != nil {
			failures = append(failures, *r.failure)
			continue
		}
		aggregates = append(aggregates, r.aggregates...)
	}

	zerolog.Ctx(ctx).Debug().
		Str("unit", wu.name).
		Int("subjects", len(subjects)).
		Int("aggregates", len(aggregates)).
		Int("failures", len(failures)).
		Msg("categories aggregated")

	return domain.With(state, domain.KeyAggregates, aggregates).AppendFailures(failures...), nil
}

// aggregateSubject groups one subject's measurements by category and
// aggregates each group. Declared categories come first in declared order,
// followed by the remaining categories in first-seen order.
func (wu *WeightedMeanUnit) aggregateSubject(subjectID string, ms []domain.Measurement) ([]domain.CategoryAggregate, error) {
	order := append([]string(nil), wu.config.Categories...)
	groups := make(map[string][]domain.Measurement, len(order))
	for _, c := range order {
		groups[c] = nil
	}
	for _, m := range ms {
		if _, seen := groups[m.Category]; !seen {
			order = append(order, m.Category)
		}
		groups[m.Category] = append(groups[m.Category], m)
	}

	out := make([]domain.CategoryAggregate, 0, len(order))
	for _, category := range order {
		agg, err := wu.aggregator.Aggregate(subjectID, category, groups[category])
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

// Validate checks the unit configuration.
func (wu *WeightedMeanUnit) Validate() error {
	if wu.aggregator == nil {
		return fmt.Errorf("aggregator is not configured")
	}
	if err := validate.Struct(wu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DefaultWeightedMeanConfig returns a configuration with no declared
// categories and a concurrency limit of 8.
func DefaultWeightedMeanConfig() WeightedMeanConfig {
	return WeightedMeanConfig{MaxConcurrency: 8}
}

// NewWeightedMeanFromConfig creates a WeightedMeanUnit from a configuration map.
func NewWeightedMeanFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := overlayConfig(config, DefaultWeightedMeanConfig())
	if err != nil {
		return nil, err
	}
	return NewWeightedMeanUnit(id, cfg)
}

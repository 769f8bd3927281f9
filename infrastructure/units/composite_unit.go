package units

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*CompositeUnit)(nil)

// CompositeUnit combines each subject's category aggregates into one
// composite score with a fixed term list shared by every subject.
//
// The combiner never inverts lower_better terms; see domain.CompositeSpec.
// Subjects missing a term are recorded with FailureMissingCategory and get
// no composite.
type CompositeUnit struct {
	name   string
	config CompositeConfig
}

// CompositeConfig defines the composite terms.
type CompositeConfig struct {
	// Name labels the composite score in reports.
	Name string `yaml:"name" json:"name" validate:"required"`

	Terms []domain.CompositeTerm `yaml:"terms" json:"terms" validate:"required,min=1,dive"`

	// Scale multiplies the summed terms. Zero means 1.
	Scale float64 `yaml:"scale" json:"scale" validate:"min=0"`

	// RequireUnitSum rejects multipliers that do not add up to one
	// (the fractional-weights shape).
	RequireUnitSum bool `yaml:"require_unit_sum" json:"require_unit_sum"`
}

// Spec returns the domain.CompositeSpec this configuration describes.
func (c CompositeConfig) Spec() domain.CompositeSpec {
	return domain.CompositeSpec{Name: c.Name, Terms: c.Terms, Scale: c.Scale}
}

// NewCompositeUnit creates a new CompositeUnit with a validated configuration.
func NewCompositeUnit(name string, config CompositeConfig) (*CompositeUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validateCompositeConfig(config); err != nil {
		return nil, err
	}
	return &CompositeUnit{name: name, config: config}, nil
}

// Name returns the unit id.
func (cu *CompositeUnit) Name() string { return cu.name }

// Execute reads domain.KeyAggregates and writes domain.KeyComposites.
func (cu *CompositeUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	aggregates, ok := domain.Get(state, domain.KeyAggregates)
	if !ok {
		return state, domain.MissingStateError(domain.KeyAggregates, cu.name)
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	spec := cu.config.Spec()
	bySubject := domain.AggregateMap(aggregates)
	subjects := state.ActiveSubjects()

	composites := make([]domain.CompositeScore, 0, len(subjects))
	var failures []domain.SubjectFailure
	for _, subj := range subjects {
		value, err := spec.Combine(bySubject[subj.ID])
		if err != nil {
			failures = append(failures, subjectFailure(cu.name, subj.ID, failureKind(err), err))
			continue
		}
		composites = append(composites, domain.CompositeScore{
			SubjectID: subj.ID,
			Name:      spec.Name,
			Value:     value,
		})
	}

	zerolog.Ctx(ctx).Debug().
		Str("unit", cu.name).
		Str("composite", spec.Name).
		Int("scored", len(composites)).
		Int("failures", len(failures)).
		Msg("composites combined")

	return domain.With(state, domain.KeyComposites, composites).AppendFailures(failures...), nil
}

// Validate checks the unit configuration.
func (cu *CompositeUnit) Validate() error { return validateCompositeConfig(cu.config) }

func validateCompositeConfig(config CompositeConfig) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	spec := config.Spec()
	if err := spec.Validate(); err != nil {
		return err
	}
	if config.RequireUnitSum && !spec.FractionalWeights() {
		var sum float64
		for _, t := range config.Terms {
			sum += t.Multiplier
		}
		return fmt.Errorf("%w: got %g", ErrNotUnitSum, sum)
	}
	return nil
}

// DefaultCompositeConfig returns a configuration named "composite" with unit
// scale. Terms have no default.
func DefaultCompositeConfig() CompositeConfig {
	return CompositeConfig{Name: SourceComposite, Scale: 1}
}

// NewCompositeFromConfig creates a CompositeUnit from a configuration map.
func NewCompositeFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := overlayConfig(config, DefaultCompositeConfig())
	if err != nil {
		return nil, err
	}
	return NewCompositeUnit(id, cfg)
}

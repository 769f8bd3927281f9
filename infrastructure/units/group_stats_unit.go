package units

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*GroupStatsUnit)(nil)

// GroupStatsUnit summarizes scores per subject group with mean, min, max,
// median and count. Groups without members are omitted.
type GroupStatsUnit struct {
	name   string
	config GroupStatsConfig
}

// GroupStatsConfig controls group summaries.
type GroupStatsConfig struct {
	// Sources are summarized in the listed order. Each is "composite" or an
	// aggregate category name.
	Sources []string `yaml:"sources" json:"sources" validate:"required,min=1,unique,dive,required"`

	// IncludeOverall adds a row for all subjects under domain.OverallGroup.
	IncludeOverall bool `yaml:"include_overall" json:"include_overall"`
}

// NewGroupStatsUnit creates a new GroupStatsUnit with a validated configuration.
func NewGroupStatsUnit(name string, config GroupStatsConfig) (*GroupStatsUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &GroupStatsUnit{name: name, config: config}, nil
}

// Name returns the unit id.
func (gu *GroupStatsUnit) Name() string { return gu.name }

// Execute reads the configured sources and writes domain.KeySummaries.
// Subjects without a group only contribute to the overall row.
func (gu *GroupStatsUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	subjects := state.ActiveSubjects()

	var rows []domain.GroupSummary
	for _, source := range gu.config.Sources {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		scores, err := scoreSource(state, gu.name, source)
		if err != nil {
			return state, err
		}

		var (
			grouped []domain.GroupedValue
			overall []float64
		)
		for _, subj := range subjects {
			v, ok := scores[subj.ID]
			if !ok {
				continue
			}
			overall = append(overall, v)
			if subj.Group != "" {
				grouped = append(grouped, domain.GroupedValue{Group: subj.Group, Value: v})
			}
		}

		rows = append(rows, domain.SummaryRows(source, domain.Summarize(grouped))...)
		if gu.config.IncludeOverall {
			if stats, ok := domain.Describe(overall); ok {
				rows = append(rows, domain.GroupSummary{Group: domain.OverallGroup, Metric: source, Statistics: stats})
			}
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("unit", gu.name).
		Strs("sources", gu.config.Sources).
		Int("rows", len(rows)).
		Msg("group statistics computed")

	return domain.With(state, domain.KeySummaries, rows), nil
}

// Validate checks the unit configuration.
func (gu *GroupStatsUnit) Validate() error {
	if err := validate.Struct(gu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DefaultGroupStatsConfig summarizes the composite per group plus overall.
func DefaultGroupStatsConfig() GroupStatsConfig {
	return GroupStatsConfig{
		Sources:        []string{SourceComposite},
		IncludeOverall: true,
	}
}

// NewGroupStatsFromConfig creates a GroupStatsUnit from a configuration map.
func NewGroupStatsFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := overlayConfig(config, DefaultGroupStatsConfig())
	if err != nil {
		return nil, err
	}
	return NewGroupStatsUnit(id, cfg)
}

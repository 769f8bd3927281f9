package units

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*RankUnit)(nil)

// RankMode selects how the ranking order is decided.
type RankMode string

const (
	// RankSort orders subjects by score.
	RankSort RankMode = "sort"

	// RankPassThrough keeps an order decided elsewhere and only renumbers it.
	RankPassThrough RankMode = "pass_through"
)

// RankUnit assigns dense 1-based ranks once every score is known.
type RankUnit struct {
	name   string
	config RankConfig
}

// RankConfig controls ranking.
type RankConfig struct {
	// Source is "composite" or the name of an aggregate category.
	Source string `yaml:"source" json:"source" validate:"required"`

	Direction domain.Direction `yaml:"direction" json:"direction" validate:"required,oneof=higher_better lower_better"`
	TieBreak  domain.TieBreak  `yaml:"tie_break" json:"tie_break" validate:"required,oneof=stable_input_order by_subject_id"`
	Mode      RankMode         `yaml:"mode" json:"mode" validate:"required,oneof=sort pass_through"`

	// OrderByExternalRank makes pass-through follow the externally
	// supplied rank column. Subjects without one follow, in input order.
	OrderByExternalRank bool `yaml:"order_by_external_rank" json:"order_by_external_rank"`
}

// NewRankUnit creates a new RankUnit with a validated configuration.
func NewRankUnit(name string, config RankConfig) (*RankUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &RankUnit{name: name, config: config}, nil
}

// Name returns the unit id.
func (ru *RankUnit) Name() string { return ru.name }

// Execute reads the configured source scores and writes domain.KeyRanking.
// Subjects without a source score are recorded with FailureMissingCategory.
func (ru *RankUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	scores, err := scoreSource(state, ru.name, ru.config.Source)
	if err != nil {
		return state, err
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	subjects := state.ActiveSubjects()
	if ru.config.Mode == RankPassThrough && ru.config.OrderByExternalRank {
		subjects = slices.Clone(subjects)
		slices.SortStableFunc(subjects, compareExternalRank)
	}

	entries := make([]domain.ScoredEntry, 0, len(subjects))
	var failures []domain.SubjectFailure
	for _, subj := range subjects {
		score, ok := scores[subj.ID]
		if !ok {
			err := fmt.Errorf("%w: %q", domain.ErrMissingCategory, ru.config.Source)
			failures = append(failures, subjectFailure(ru.name, subj.ID, domain.FailureMissingCategory, err))
			continue
		}
		entries = append(entries, domain.ScoredEntry{SubjectID: subj.ID, Score: score})
	}

	var ranking []domain.RankedEntry
	switch ru.config.Mode {
	case RankPassThrough:
		ranking = domain.Renumber(entries)
	default:
		ranking = domain.Rank(entries, ru.config.Direction, ru.config.TieBreak)
	}

	zerolog.Ctx(ctx).Debug().
		Str("unit", ru.name).
		Str("source", ru.config.Source).
		Str("mode", string(ru.config.Mode)).
		Int("ranked", len(ranking)).
		Int("failures", len(failures)).
		Msg("subjects ranked")

	return domain.With(state, domain.KeyRanking, ranking).AppendFailures(failures...), nil
}

// compareExternalRank orders by external rank ascending with unranked
// subjects last.
func compareExternalRank(a, b domain.Subject) int {
	switch {
	case a.ExternalRank == b.ExternalRank:
		return 0
	case a.ExternalRank == 0:
		return 1
	case b.ExternalRank == 0:
		return -1
	case a.ExternalRank < b.ExternalRank:
		return -1
	default:
		return 1
	}
}

// Validate checks the unit configuration.
func (ru *RankUnit) Validate() error {
	if err := validate.Struct(ru.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DefaultRankConfig ranks the composite, highest first, keeping input order
// among ties.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		Source:    SourceComposite,
		Direction: domain.HigherBetter,
		TieBreak:  domain.TieStableInputOrder,
		Mode:      RankSort,
	}
}

// NewRankFromConfig creates a RankUnit from a configuration map.
func NewRankFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := overlayConfig(config, DefaultRankConfig())
	if err != nil {
		return nil, err
	}
	return NewRankUnit(id, cfg)
}

package units

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/domain"
)

func compositeState(subjects []domain.Subject, composites []domain.CompositeScore) domain.State {
	return domain.NewState().WithMultiple(map[string]any{
		domain.KeySubjects.Name():   subjects,
		domain.KeyComposites.Name(): composites,
	})
}

func rankedIDs(t *testing.T, state domain.State) []string {
	t.Helper()
	ranking, ok := domain.Get(state, domain.KeyRanking)
	require.True(t, ok)
	ids := make([]string, len(ranking))
	for i, r := range ranking {
		assert.Equal(t, i+1, r.Rank)
		ids[i] = r.SubjectID
	}
	return ids
}

func TestRankUnit_Sort(t *testing.T) {
	subjects := []domain.Subject{{ID: "B"}, {ID: "A", Order: 1}, {ID: "C", Order: 2}}
	composites := []domain.CompositeScore{
		{SubjectID: "A", Value: 0.80},
		{SubjectID: "B", Value: 0.80},
		{SubjectID: "C", Value: 0.90},
	}

	tests := []struct {
		name   string
		config RankConfig
		want   []string
	}{
		{
			name:   "descending with stable ties follows subject order",
			config: DefaultRankConfig(),
			want:   []string{"C", "B", "A"},
		},
		{
			name: "ties by subject id",
			config: RankConfig{
				Source: SourceComposite, Direction: domain.HigherBetter,
				TieBreak: domain.TieBySubjectID, Mode: RankSort,
			},
			want: []string{"C", "A", "B"},
		},
		{
			name: "ascending for lower_better",
			config: RankConfig{
				Source: SourceComposite, Direction: domain.LowerBetter,
				TieBreak: domain.TieStableInputOrder, Mode: RankSort,
			},
			want: []string{"B", "A", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewRankUnit("rank", tt.config)
			require.NoError(t, err)
			state, err := unit.Execute(context.Background(), compositeState(subjects, composites))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rankedIDs(t, state))
		})
	}
}

func TestRankUnit_CategorySource(t *testing.T) {
	subjects := []domain.Subject{{ID: "img1"}, {ID: "img2", Order: 1}, {ID: "img3", Order: 2}}
	aggs := []domain.CategoryAggregate{
		{SubjectID: "img1", Category: "FID", Value: 31},
		{SubjectID: "img2", Category: "FID", Value: 18},
		{SubjectID: "img1", Category: "HPSv2", Value: 0.2},
	}

	unit, err := NewRankUnit("rank_fid", RankConfig{
		Source: "FID", Direction: domain.LowerBetter, TieBreak: domain.TieStableInputOrder, Mode: RankSort,
	})
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), aggregatedState(subjects, aggs))
	require.NoError(t, err)
	assert.Equal(t, []string{"img2", "img1"}, rankedIDs(t, state))

	failures, _ := domain.Get(state, domain.KeyFailures)
	require.Len(t, failures, 1)
	assert.Equal(t, "img3", failures[0].SubjectID)
	assert.Equal(t, domain.FailureMissingCategory, failures[0].Kind)
}

func TestRankUnit_PassThrough(t *testing.T) {
	subjects := []domain.Subject{
		{ID: "a.png", ExternalRank: 3},
		{ID: "b.png", ExternalRank: 1, Order: 1},
		{ID: "c.png", Order: 2},
		{ID: "d.png", ExternalRank: 2, Order: 3},
	}
	composites := []domain.CompositeScore{
		{SubjectID: "a.png", Value: 0.9},
		{SubjectID: "b.png", Value: 0.1},
		{SubjectID: "c.png", Value: 0.5},
		{SubjectID: "d.png", Value: math.NaN()},
	}

	t.Run("keeps ingestion order", func(t *testing.T) {
		cfg := DefaultRankConfig()
		cfg.Mode = RankPassThrough
		unit, err := NewRankUnit("rank", cfg)
		require.NoError(t, err)

		state, err := unit.Execute(context.Background(), compositeState(subjects, composites))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"}, rankedIDs(t, state))
	})

	t.Run("orders by external rank", func(t *testing.T) {
		cfg := DefaultRankConfig()
		cfg.Mode = RankPassThrough
		cfg.OrderByExternalRank = true
		unit, err := NewRankUnit("rank", cfg)
		require.NoError(t, err)

		state, err := unit.Execute(context.Background(), compositeState(subjects, composites))
		require.NoError(t, err)
		assert.Equal(t, []string{"b.png", "d.png", "a.png", "c.png"}, rankedIDs(t, state),
			"subjects without an external rank come last")
	})
}

func TestRankUnit_Errors(t *testing.T) {
	unit, err := NewRankUnit("rank", DefaultRankConfig())
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	category, err := NewRankUnit("rank", RankConfig{
		Source: "FID", Direction: domain.LowerBetter, TieBreak: domain.TieStableInputOrder, Mode: RankSort,
	})
	require.NoError(t, err)
	_, err = category.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	_, err = NewRankUnit("rank", RankConfig{Source: SourceComposite, Direction: "up", TieBreak: domain.TieBySubjectID, Mode: RankSort})
	assert.Error(t, err)
	_, err = NewRankUnit("rank", RankConfig{Source: SourceComposite, Direction: domain.HigherBetter, TieBreak: "coin_flip", Mode: RankSort})
	assert.Error(t, err)
	_, err = NewRankUnit("", DefaultRankConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}

func TestNewRankFromConfig(t *testing.T) {
	unit, err := NewRankFromConfig("rank", map[string]any{"tie_break": "by_subject_id"})
	require.NoError(t, err)

	ru := unit.(*RankUnit)
	assert.Equal(t, domain.TieBySubjectID, ru.config.TieBreak)
	assert.Equal(t, SourceComposite, ru.config.Source)
	assert.Equal(t, RankSort, ru.config.Mode)

	_, err = NewRankFromConfig("rank", map[string]any{"mode": "shuffle"})
	assert.Error(t, err)
}

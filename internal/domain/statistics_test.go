package domain

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_GroupSummary(t *testing.T) {
	got := Summarize([]GroupedValue{
		{Group: "1", Value: 10},
		{Group: "2", Value: 30},
		{Group: "1", Value: 20},
	})

	assert.Equal(t, map[string]Statistics{
		"1": {Mean: 15, Min: 10, Max: 20, Median: 15, Count: 2},
		"2": {Mean: 30, Min: 30, Max: 30, Median: 30, Count: 1},
	}, got)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil), "no entries means no groups")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Statistics
		ok     bool
	}{
		{
			name:   "odd count uses middle value",
			values: []float64{79.8, 62.1, 91.4},
			want:   Statistics{Mean: (79.8 + 62.1 + 91.4) / 3, Min: 62.1, Max: 91.4, Median: 79.8, Count: 3},
			ok:     true,
		},
		{
			name:   "even count averages middle values",
			values: []float64{0.9, 0.1, 0.7, 0.3},
			want:   Statistics{Mean: 0.5, Min: 0.1, Max: 0.9, Median: 0.5, Count: 4},
			ok:     true,
		},
		{
			name:   "empty",
			values: nil,
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Describe(tt.values)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.want.Mean, got.Mean, 1e-9)
			assert.InDelta(t, tt.want.Median, got.Median, 1e-9)
			assert.Equal(t, tt.want.Min, got.Min)
			assert.Equal(t, tt.want.Max, got.Max)
			assert.Equal(t, tt.want.Count, got.Count)
		})
	}
}

func TestDescribe_DoesNotSortInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, _ = Describe(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

// TestSummarize_Properties checks that each group's count and mean match
// its members and that only populated groups appear.
func TestSummarize_Properties(t *testing.T) {
	err := quick.Check(func(groups []uint8, values []int16) bool {
		n := min(len(groups), len(values))
		entries := make([]GroupedValue, n)
		members := make(map[string][]float64)
		for i := 0; i < n; i++ {
			g := string(rune('a' + groups[i]%4))
			entries[i] = GroupedValue{Group: g, Value: float64(values[i])}
			members[g] = append(members[g], float64(values[i]))
		}

		got := Summarize(entries)
		if len(got) != len(members) {
			return false
		}
		for g, stats := range got {
			vs, ok := members[g]
			if !ok || stats.Count != len(vs) || stats.Count == 0 {
				return false
			}
			var sum float64
			for _, v := range vs {
				sum += v
			}
			if diff := stats.Mean - sum/float64(len(vs)); diff > 1e-9 || diff < -1e-9 {
				return false
			}
			if stats.Min > stats.Median || stats.Median > stats.Max {
				return false
			}
		}
		return true
	}, &quick.Config{MaxCount: 500})
	assert.NoError(t, err)
}

func TestSortGroups(t *testing.T) {
	groups := []string{"10", OverallGroup, "b", "2", "a", "1"}
	SortGroups(groups)
	assert.Equal(t, []string{"1", "2", "10", "a", "b", OverallGroup}, groups)
}

func TestSummaryRowsAndIndex(t *testing.T) {
	rows := SummaryRows("composite", Summarize([]GroupedValue{
		{Group: "2", Value: 4},
		{Group: "1", Value: 2},
	}))
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].Group)
	assert.Equal(t, "composite", rows[0].Metric)

	idx := IndexSummaries(rows)
	stats, err := idx.Get("composite", "2")
	require.NoError(t, err)
	assert.Equal(t, 4.0, stats.Mean)

	_, err = idx.Get("composite", "5")
	assert.ErrorIs(t, err, ErrEmptyGroup)
	_, err = idx.Get("FID", "1")
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

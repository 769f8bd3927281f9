package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
)

// OverallGroup is the group name used for statistics across every subject.
const OverallGroup = "all"

// Statistics holds the descriptive reducers for one partition.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// GroupedValue is one (group, value) observation.
type GroupedValue struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
}

// GroupSummary is a row of the group statistics table.
type GroupSummary struct {
	Group  string `json:"group"`
	Metric string `json:"metric"`
	Statistics
}

// Describe computes mean, min, max, median and count of values. It returns
// false for an empty slice, which callers treat as "omit".
func Describe(values []float64) (Statistics, bool) {
	if len(values) == 0 {
		return Statistics{}, false
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Statistics{
		Mean:   sum / float64(n),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: median,
		Count:  n,
	}, true
}

// Summarize partitions entries by group and reduces each partition.
// Groups without entries never appear in the result.
func Summarize(entries []GroupedValue) map[string]Statistics {
	partitions := make(map[string][]float64)
	for _, e := range entries {
		partitions[e.Group] = append(partitions[e.Group], e.Value)
	}

	out := make(map[string]Statistics, len(partitions))
	for group, values := range partitions {
		if stats, ok := Describe(values); ok {
			out[group] = stats
		}
	}
	return out
}

// SummaryRows flattens a Summarize result for one metric into rows ordered
// by SortGroups.
func SummaryRows(metric string, stats map[string]Statistics) []GroupSummary {
	groups := make([]string, 0, len(stats))
	for g := range stats {
		groups = append(groups, g)
	}
	SortGroups(groups)

	rows := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, GroupSummary{Group: g, Metric: metric, Statistics: stats[g]})
	}
	return rows
}

// SortGroups orders group names naturally: numeric names numerically first,
// then everything else lexically, with OverallGroup last.
func SortGroups(groups []string) {
	slices.SortFunc(groups, func(a, b string) int {
		if a == OverallGroup || b == OverallGroup {
			switch {
			case a == b:
				return 0
			case a == OverallGroup:
				return 1
			default:
				return -1
			}
		}
		af, aErr := strconv.ParseFloat(a, 64)
		bf, bErr := strconv.ParseFloat(b, 64)
		switch {
		case aErr == nil && bErr == nil:
			if c := cmp.Compare(af, bf); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		}
		return cmp.Compare(a, b)
	})
}

// SummaryIndex provides lookup over summary rows by (metric, group).
type SummaryIndex map[string]map[string]Statistics

// IndexSummaries builds a SummaryIndex from rows.
func IndexSummaries(rows []GroupSummary) SummaryIndex {
	idx := make(SummaryIndex)
	for _, r := range rows {
		if idx[r.Metric] == nil {
			idx[r.Metric] = make(map[string]Statistics)
		}
		idx[r.Metric][r.Group] = r.Statistics
	}
	return idx
}

// Get returns the statistics for metric and group, or ErrEmptyGroup when
// the group had no members for that metric.
func (idx SummaryIndex) Get(metric, group string) (Statistics, error) {
	stats, ok := idx[metric][group]
	if !ok {
		return Statistics{}, fmt.Errorf("%w: metric=%s, group=%s", ErrEmptyGroup, metric, group)
	}
	return stats, nil
}

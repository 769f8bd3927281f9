package domain

import (
	"cmp"
	"math"
	"slices"
)

// TieBreak selects how entries with equal scores are ordered.
type TieBreak string

const (
	// TieStableInputOrder keeps equal-scored entries in their input order.
	TieStableInputOrder TieBreak = "stable_input_order"

	// TieBySubjectID orders equal-scored entries by ascending subject id.
	TieBySubjectID TieBreak = "by_subject_id"
)

// Valid reports whether t is a known tie-break policy.
func (t TieBreak) Valid() bool { return t == TieStableInputOrder || t == TieBySubjectID }

// ScoredEntry is an unranked (subject, score) pair.
type ScoredEntry struct {
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
}

// RankedEntry is a scored subject with its dense 1-based rank.
type RankedEntry struct {
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

// Rank orders entries by score and assigns ranks 1..N. Scores are sorted
// descending for HigherBetter and ascending for LowerBetter. Equal scores
// never share a rank: they keep input order under TieStableInputOrder and
// are ordered by subject id under TieBySubjectID. Non-finite scores sort
// last in either direction. The input slice is not modified.
func Rank(entries []ScoredEntry, direction Direction, tieBreak TieBreak) []RankedEntry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b ScoredEntry) int {
		if c := compareScores(a.Score, b.Score, direction); c != 0 {
			return c
		}
		if tieBreak == TieBySubjectID {
			return cmp.Compare(a.SubjectID, b.SubjectID)
		}
		return 0
	})
	return Renumber(sorted)
}

// Renumber assigns ranks 1..N in the given order without sorting. It is
// the pass-through mode for rankings supplied by an external model.
func Renumber(entries []ScoredEntry) []RankedEntry {
	ranked := make([]RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = RankedEntry{SubjectID: e.SubjectID, Score: e.Score, Rank: i + 1}
	}
	return ranked
}

// Entries converts ranked entries back to scored entries in their current
// order, which allows a ranking to be fed back into Rank.
func Entries(ranked []RankedEntry) []ScoredEntry {
	out := make([]ScoredEntry, len(ranked))
	for i, r := range ranked {
		out[i] = ScoredEntry{SubjectID: r.SubjectID, Score: r.Score}
	}
	return out
}

func compareScores(a, b float64, direction Direction) int {
	aBad := math.IsNaN(a) || math.IsInf(a, 0)
	bBad := math.IsNaN(b) || math.IsInf(b, 0)
	switch {
	case aBad && bBad:
		return 0
	case aBad:
		return 1
	case bBad:
		return -1
	}
	if direction == LowerBetter {
		return cmp.Compare(a, b)
	}
	return cmp.Compare(b, a)
}

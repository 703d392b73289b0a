// Package staffing implements the deterministic staff-priority ranking and
// the forward search for the next date with enough free staff.
package staffing

import (
	"sort"
	"time"

	"raincheck/internal/types"
)

// Rank returns the candidates in a deterministic total order, best first.
//
// Sort key, descending priority:
//  1. average score (higher first)
//  2. evaluation count (higher first)
//  3. most recent scored evaluation (candidates with no timestamp sort worst)
//  4. candidate ID, ascending, as the final tie-break
//
// The ID tie-break guarantees the same input set always produces the same
// permutation, even when keys 1-3 are identical. The input slice is not
// modified.
func Rank(candidates []types.StaffCandidate) []types.StaffCandidate {
	ranked := make([]types.StaffCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return lessByPriority(ranked[i], ranked[j])
	})
	return ranked
}

// RankWithPositions returns the ranking as numbered rows for API callers.
func RankWithPositions(candidates []types.StaffCandidate) []types.StaffRanking {
	ranked := Rank(candidates)
	rows := make([]types.StaffRanking, len(ranked))
	for i, c := range ranked {
		rows[i] = types.StaffRanking{
			StaffID:         c.ID,
			Rank:            i + 1,
			Score:           c.AverageScore,
			EvaluationCount: c.EvaluationCount,
			LastScoredAt:    c.LastScoredAt,
		}
	}
	return rows
}

// lessByPriority reports whether a outranks b.
func lessByPriority(a, b types.StaffCandidate) bool {
	if a.AverageScore != b.AverageScore {
		return a.AverageScore > b.AverageScore
	}
	if a.EvaluationCount != b.EvaluationCount {
		return a.EvaluationCount > b.EvaluationCount
	}

	aScored := scoredAtOrZero(a)
	bScored := scoredAtOrZero(b)
	if !aScored.Equal(bScored) {
		return aScored.After(bScored)
	}

	return a.ID < b.ID
}

// scoredAtOrZero treats a missing timestamp as the zero time, which sorts as
// the earliest (worst) possible evaluation date.
func scoredAtOrZero(c types.StaffCandidate) time.Time {
	if c.LastScoredAt != nil {
		return *c.LastScoredAt
	}
	return time.Time{}
}

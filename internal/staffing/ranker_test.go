package staffing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"raincheck/internal/types"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestRank_OrdersByScoreCountRecencyID(t *testing.T) {
	older := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	candidates := []types.StaffCandidate{
		{ID: "st_04", AverageScore: 4.0, EvaluationCount: 10, LastScoredAt: timePtr(newer)},
		{ID: "st_01", AverageScore: 4.8, EvaluationCount: 5, LastScoredAt: timePtr(older)},
		{ID: "st_03", AverageScore: 4.5, EvaluationCount: 8, LastScoredAt: timePtr(older)},
		{ID: "st_02", AverageScore: 4.5, EvaluationCount: 12, LastScoredAt: timePtr(older)},
	}

	ranked := Rank(candidates)

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"st_01", "st_02", "st_03", "st_04"}, ids)
}

func TestRank_RecencyBreaksScoreAndCountTies(t *testing.T) {
	older := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	candidates := []types.StaffCandidate{
		{ID: "st_a", AverageScore: 4.0, EvaluationCount: 5, LastScoredAt: timePtr(older)},
		{ID: "st_b", AverageScore: 4.0, EvaluationCount: 5, LastScoredAt: timePtr(newer)},
	}

	ranked := Rank(candidates)
	assert.Equal(t, "st_b", ranked[0].ID)
	assert.Equal(t, "st_a", ranked[1].ID)
}

func TestRank_MissingTimestampRanksWorst(t *testing.T) {
	scored := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	candidates := []types.StaffCandidate{
		{ID: "st_never", AverageScore: 4.0, EvaluationCount: 5},
		{ID: "st_once", AverageScore: 4.0, EvaluationCount: 5, LastScoredAt: timePtr(scored)},
	}

	ranked := Rank(candidates)
	assert.Equal(t, "st_once", ranked[0].ID)
}

func TestRank_IDBreaksFullTies(t *testing.T) {
	candidates := []types.StaffCandidate{
		{ID: "st_c", AverageScore: 3.0, EvaluationCount: 2},
		{ID: "st_a", AverageScore: 3.0, EvaluationCount: 2},
		{ID: "st_b", AverageScore: 3.0, EvaluationCount: 2},
	}

	ranked := Rank(candidates)
	assert.Equal(t, "st_a", ranked[0].ID)
	assert.Equal(t, "st_b", ranked[1].ID)
	assert.Equal(t, "st_c", ranked[2].ID)
}

func TestRank_DeterministicAcrossPermutations(t *testing.T) {
	when := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	base := []types.StaffCandidate{
		{ID: "st_1", AverageScore: 4.2, EvaluationCount: 7, LastScoredAt: timePtr(when)},
		{ID: "st_2", AverageScore: 4.2, EvaluationCount: 7, LastScoredAt: timePtr(when)},
		{ID: "st_3", AverageScore: 4.9, EvaluationCount: 1},
		{ID: "st_4", AverageScore: 3.1, EvaluationCount: 20, LastScoredAt: timePtr(when)},
	}

	want := Rank(base)

	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]types.StaffCandidate, len(base))
		for i, j := range perm {
			shuffled[i] = base[j]
		}
		assert.Equal(t, want, Rank(shuffled))
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	candidates := []types.StaffCandidate{
		{ID: "st_z", AverageScore: 1.0},
		{ID: "st_a", AverageScore: 5.0},
	}

	Rank(candidates)
	assert.Equal(t, "st_z", candidates[0].ID)
}

func TestRankWithPositions(t *testing.T) {
	candidates := []types.StaffCandidate{
		{ID: "st_low", AverageScore: 2.0, EvaluationCount: 3},
		{ID: "st_high", AverageScore: 4.5, EvaluationCount: 9},
	}

	rows := RankWithPositions(candidates)
	assert.Len(t, rows, 2)
	assert.Equal(t, "st_high", rows[0].StaffID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 4.5, rows[0].Score)
	assert.Equal(t, "st_low", rows[1].StaffID)
	assert.Equal(t, 2, rows[1].Rank)
}

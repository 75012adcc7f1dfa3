package faqanalysis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

func TestRankCombinesWeightedSignals(t *testing.T) {
	week := 7 * 24 * time.Hour
	weights := faqanalysis.Weights{Frequency: 0.5, Feedback: 0.3, Recency: 0.2, HalfLife: week}
	candidates := []faqanalysis.Candidate{
		{ID: "c-1", AskCount: 10, UnhelpfulCount: 0, LastAskedAt: baseTime},
		{ID: "c-2", AskCount: 5, UnhelpfulCount: 4, LastAskedAt: baseTime.Add(-week)},
		{ID: "c-3"},
	}

	ranking, skipped := faqanalysis.Rank(candidates, weights, baseTime)
	require.False(t, skipped)
	require.Len(t, ranking, 3)
	require.Equal(t, "c-1", ranking[0].ID)
	require.InDelta(t, 0.5+0.2, ranking[0].Score, 1e-9)
	require.Equal(t, "c-2", ranking[1].ID)
	require.InDelta(t, 0.25+0.3+0.1, ranking[1].Score, 1e-9)
	require.Equal(t, "c-3", ranking[2].ID)
	require.Zero(t, ranking[2].Score)
	for i, r := range ranking {
		require.Equal(t, i+1, r.Rank)
	}
}

func TestRankBreaksTiesByOrderThenID(t *testing.T) {
	weights := faqanalysis.Weights{Frequency: 1}
	tests := []struct {
		name       string
		candidates []faqanalysis.Candidate
		want       []string
	}{
		{
			name: "numeric order",
			candidates: []faqanalysis.Candidate{
				{ID: "c-10", Order: 10, AskCount: 2},
				{ID: "c-9", Order: 9, AskCount: 2},
				{ID: "c-2", Order: 2, AskCount: 1},
			},
			want: []string{"c-9", "c-10", "c-2"},
		},
		{
			name: "id without order",
			candidates: []faqanalysis.Candidate{
				{ID: "b", AskCount: 2},
				{ID: "a", AskCount: 2},
			},
			want: []string{"a", "b"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ranking, _ := faqanalysis.Rank(tc.candidates, weights, baseTime)
			require.Equal(t, tc.want, rankedIDs(ranking))
		})
	}
}

func TestRankZeroScoreEntryKeepsExistingOrder(t *testing.T) {
	weights := faqanalysis.Weights{Frequency: 0.5, Feedback: 0.3, Recency: 0.2, HalfLife: 7 * 24 * time.Hour}
	existing := []faqanalysis.Candidate{
		{ID: "c-1", Order: 1, AskCount: 4, LastAskedAt: baseTime.Add(-48 * time.Hour)},
		{ID: "c-2", Order: 2, AskCount: 4, UnhelpfulCount: 3, LastAskedAt: baseTime.Add(-time.Hour)},
		{ID: "c-3", Order: 3, AskCount: 1},
	}
	before, _ := faqanalysis.Rank(existing, weights, baseTime)

	withNew := append(append([]faqanalysis.Candidate{}, existing...), faqanalysis.Candidate{ID: "c-4", Order: 4})
	after, _ := faqanalysis.Rank(withNew, weights, baseTime)

	require.Equal(t, rankedIDs(before), rankedIDs(after)[:len(before)])
	require.Equal(t, "c-4", after[len(after)-1].ID)
	require.Zero(t, after[len(after)-1].Score)
}

func rankedIDs(ranking []faqanalysis.PriorityScore) []string {
	ids := make([]string, len(ranking))
	for i, r := range ranking {
		ids[i] = r.ID
	}
	return ids
}

func TestRankSkipsRecencyForFutureTimestamps(t *testing.T) {
	weights := faqanalysis.Weights{Frequency: 0.5, Recency: 0.5, HalfLife: time.Hour}
	ranking, skipped := faqanalysis.Rank([]faqanalysis.Candidate{
		{ID: "c-1", AskCount: 1, LastAskedAt: baseTime.Add(time.Minute)},
		{ID: "c-2", AskCount: 1, LastAskedAt: baseTime},
	}, weights, baseTime)
	require.True(t, skipped)
	require.InDelta(t, ranking[0].Score, ranking[1].Score, 1e-12)
	require.Equal(t, "c-1", ranking[0].ID)
}

func TestRankEmpty(t *testing.T) {
	ranking, skipped := faqanalysis.Rank(nil, faqanalysis.Weights{Frequency: 1}, baseTime)
	require.Empty(t, ranking)
	require.False(t, skipped)
}

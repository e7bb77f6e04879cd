package refine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrail/internal/types"
)

func TestTopCandidates(t *testing.T) {
	t.Run("ranks by relevance then citation count", func(t *testing.T) {
		doc := &types.SessionDocument{Cases: []types.CaseRecord{
			{ClusterID: 1, CaseName: "Low", InitialRelevance: ptr(2), CiteCount: 500},
			{ClusterID: 2, CaseName: "HighFewCites", InitialRelevance: ptr(5), CiteCount: 10},
			{ClusterID: 3, CaseName: "HighManyCites", InitialRelevance: ptr(5), CiteCount: 90},
		}}

		res := TopCandidates(doc, 2)
		require.Len(t, res.Candidates, 2)
		assert.Equal(t, int64(3), res.Candidates[0].ClusterID)
		assert.Equal(t, int64(2), res.Candidates[1].ClusterID)
	})

	t.Run("excludes analyzed and unscored cases", func(t *testing.T) {
		doc := &types.SessionDocument{
			Cases: []types.CaseRecord{
				{ClusterID: 1, CaseName: "Done", InitialRelevance: ptr(5)},
				{ClusterID: 2, CaseName: "Unscored"},
				{ClusterID: 3, CaseName: "Eligible", InitialRelevance: ptr(3)},
			},
			Analyzed: []types.AnalyzedCase{{ClusterID: 1, RelevanceRanking: 5}},
		}

		res := TopCandidates(doc, 10)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, int64(3), res.Candidates[0].ClusterID)
		assert.Equal(t, 1, res.Unscored)
		assert.Equal(t, 2, res.TotalUnanalyzed)
	})

	t.Run("prefers an unseen court among equals", func(t *testing.T) {
		doc := &types.SessionDocument{Cases: []types.CaseRecord{
			{ClusterID: 1, CaseName: "Ninth A", Court: "ca9", InitialRelevance: ptr(4), CiteCount: 50},
			{ClusterID: 2, CaseName: "Ninth B", Court: "ca9", InitialRelevance: ptr(4), CiteCount: 40},
			{ClusterID: 3, CaseName: "Seventh", Court: "ca7", InitialRelevance: ptr(4), CiteCount: 40},
		}}

		res := TopCandidates(doc, 2)
		require.Len(t, res.Candidates, 2)
		assert.Equal(t, int64(1), res.Candidates[0].ClusterID)
		// The second slot goes to the other circuit, not the ca9 near-duplicate.
		assert.Equal(t, int64(3), res.Candidates[1].ClusterID)
	})

	t.Run("post-pivotal recency breaks remaining ties", func(t *testing.T) {
		doc := &types.SessionDocument{
			PivotalCases: []types.PivotalCase{{Name: "Graham v. Connor (1989)"}},
			Cases: []types.CaseRecord{
				{ClusterID: 1, CaseName: "Old", DateFiled: "1975-01-01", InitialRelevance: ptr(4), CiteCount: 10},
				{ClusterID: 2, CaseName: "New", DateFiled: "2015-06-01", InitialRelevance: ptr(4), CiteCount: 10},
			},
		}

		res := TopCandidates(doc, 1)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, int64(2), res.Candidates[0].ClusterID)
	})

	t.Run("absent context match ranks two notches lower", func(t *testing.T) {
		doc := &types.SessionDocument{Cases: []types.CaseRecord{
			{ClusterID: 1, CaseName: "NoContext", InitialRelevance: ptr(5), ContextMatch: "absent"},
			{ClusterID: 2, CaseName: "Confirmed", InitialRelevance: ptr(4), ContextMatch: "full"},
		}}

		res := TopCandidates(doc, 2)
		require.Len(t, res.Candidates, 2)
		assert.Equal(t, int64(2), res.Candidates[0].ClusterID)
		// The stored score is not rewritten, only the ranking changes.
		assert.Equal(t, 5, *res.Candidates[1].InitialRelevance)
	})

	t.Run("lower cluster id wins a full tie", func(t *testing.T) {
		doc := &types.SessionDocument{Cases: []types.CaseRecord{
			{ClusterID: 9, CaseName: "B", InitialRelevance: ptr(3)},
			{ClusterID: 4, CaseName: "A", InitialRelevance: ptr(3)},
		}}

		res := TopCandidates(doc, 1)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, int64(4), res.Candidates[0].ClusterID)
	})

	t.Run("empty pool returns an empty ranking", func(t *testing.T) {
		res := TopCandidates(&types.SessionDocument{}, 5)
		assert.Empty(t, res.Candidates)
		assert.Equal(t, 0, res.Returned)
	})
}

package refine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"casetrail/internal/config"
	"casetrail/internal/types"
)

func ptr(v int) *int { return &v }

func docWith(depth string, rankings []int, leadCount int) *types.SessionDocument {
	doc := &types.SessionDocument{
		ParsedQuery: types.ParsedQuery{DepthPreference: depth},
	}
	for i, r := range rankings {
		id := int64(i + 1)
		doc.Cases = append(doc.Cases, types.CaseRecord{
			ClusterID: id, CaseName: "Case", InitialRelevance: ptr(r),
		})
		doc.Analyzed = append(doc.Analyzed, types.AnalyzedCase{
			ClusterID: id, RelevanceRanking: r,
		})
	}
	for i := 0; i < leadCount; i++ {
		key := string(rune('a' + i))
		doc.PendingLeads = append(doc.PendingLeads, types.Lead{
			Kind: types.LeadTerminology, Text: key, Key: key,
		})
	}
	return doc
}

func TestShouldRefine(t *testing.T) {
	cfg := config.DefaultConfig().Refine

	t.Run("quick mode skips regardless of stats", func(t *testing.T) {
		doc := docWith(types.DepthQuick, nil, 10)
		d := ShouldRefine(doc, cfg)
		assert.Equal(t, DecisionSkip, d.Decision)
		assert.Equal(t, "Quick mode requested by user", d.Reason)
		assert.Equal(t, 10, d.Stats.UnexploredLeads)
	})

	t.Run("deep mode refines regardless of stats", func(t *testing.T) {
		doc := docWith(types.DepthDeep, []int{5, 5, 5, 5}, 0)
		d := ShouldRefine(doc, cfg)
		assert.Equal(t, DecisionRefine, d.Decision)
		assert.Equal(t, "Deep research mode requested by user", d.Reason)
	})

	t.Run("unspecified refines on low coverage and abundant leads", func(t *testing.T) {
		doc := docWith(types.DepthUnspecified, []int{5, 4, 2}, 5)
		d := ShouldRefine(doc, cfg)
		assert.Equal(t, DecisionRefine, d.Decision)
		assert.Equal(t, 2, d.Stats.HighRelevanceCount)
		assert.Contains(t, d.Reason, "Only 2 cases with relevance >= 4")
		assert.Contains(t, d.Reason, "5 unexplored leads")
	})

	t.Run("unspecified skips when both thresholds are satisfied", func(t *testing.T) {
		doc := docWith(types.DepthUnspecified, []int{5, 4, 4, 3}, 2)
		d := ShouldRefine(doc, cfg)
		assert.Equal(t, DecisionSkip, d.Decision)
		assert.Contains(t, d.Reason, "3 cases with relevance >= 4")
		assert.Contains(t, d.Reason, "Only 2 unexplored leads remaining")
	})

	t.Run("factual queries get a separate coverage clause", func(t *testing.T) {
		doc := docWith(types.DepthUnspecified, []int{5, 4, 4, 2}, 0)
		doc.ParsedQuery.QueryType = "fact"
		d := ShouldRefine(doc, cfg)
		// Three cases rank >= 3 so factual coverage is met too.
		assert.Equal(t, DecisionSkip, d.Decision)
		assert.NotNil(t, d.Stats.FactualMatchCount)
		assert.Equal(t, 3, *d.Stats.FactualMatchCount)

		doc2 := docWith(types.DepthUnspecified, []int{5, 4, 4, 2}, 0)
		doc2.ParsedQuery.QueryType = "fact"
		doc2.Analyzed = doc2.Analyzed[:0]
		for i := range doc2.Cases {
			doc2.Analyzed = append(doc2.Analyzed, types.AnalyzedCase{
				ClusterID: doc2.Cases[i].ClusterID, RelevanceRanking: 2,
			})
		}
		d2 := ShouldRefine(doc2, cfg)
		assert.Equal(t, DecisionRefine, d2.Decision)
		assert.Contains(t, d2.Reason, "analogous expansion needed")
	})

	t.Run("same document always yields the same decision", func(t *testing.T) {
		doc := docWith(types.DepthUnspecified, []int{5, 4, 1}, 4)
		first := ShouldRefine(doc, cfg)
		second := ShouldRefine(doc, cfg)
		assert.Empty(t, cmp.Diff(first, second))
	})
}

func TestCheckDiminishingReturns(t *testing.T) {
	cfg := config.DefaultConfig().Refine

	build := func(roundIDs []int64, analyzed []int64) *types.SessionDocument {
		doc := &types.SessionDocument{}
		doc.IterationLog = []types.IterationLogEntry{{Round: 2, ClusterIDs: roundIDs}}
		for _, id := range analyzed {
			doc.Analyzed = append(doc.Analyzed, types.AnalyzedCase{ClusterID: id})
		}
		return doc
	}

	t.Run("stops at the overlap threshold", func(t *testing.T) {
		// 3 of 5 unique ids already analyzed: 60% overlap, exactly at the line.
		doc := build([]int64{1, 2, 3, 4, 5, 5}, []int64{1, 2, 3})
		res := CheckDiminishingReturns(doc, 2, cfg)
		assert.Equal(t, DecisionStop, res.Decision)
		assert.InDelta(t, 0.6, res.OverlapPct, 1e-9)
		assert.Equal(t, 5, res.NewCasesInRound)
		assert.Equal(t, 3, res.AlreadyAnalyzed)
	})

	t.Run("continues below the threshold", func(t *testing.T) {
		doc := build([]int64{1, 2, 3, 4, 5}, []int64{1, 2})
		res := CheckDiminishingReturns(doc, 2, cfg)
		assert.Equal(t, DecisionContinue, res.Decision)
		assert.InDelta(t, 0.4, res.OverlapPct, 1e-9)
	})

	t.Run("a round with no data continues", func(t *testing.T) {
		doc := build([]int64{1}, nil)
		res := CheckDiminishingReturns(doc, 7, cfg)
		assert.Equal(t, DecisionContinue, res.Decision)
		assert.Equal(t, "No data for round 7", res.Reason)
	})
}

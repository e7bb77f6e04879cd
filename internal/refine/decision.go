// Package refine decides, from session statistics alone, whether another
// research round is warranted, and ranks unanalyzed cases for the next round.
// Both decision functions are pure with respect to the session document:
// identical document contents always produce identical output, so decisions
// can be replayed and audited offline.
package refine

import (
	"fmt"
	"strings"

	"casetrail/internal/config"
	"casetrail/internal/leads"
	"casetrail/internal/logging"
	"casetrail/internal/types"
)

// Decisions.
const (
	DecisionRefine   = "refine"
	DecisionSkip     = "skip"
	DecisionContinue = "continue"
	DecisionStop     = "stop"
)

// Stats are the inputs a refinement decision was computed from. The reason
// string is reconstructable from these alone.
type Stats struct {
	HighRelevanceCount int  `json:"high_relevance_count"`
	UnexploredLeads    int  `json:"unexplored_leads"`
	TotalAnalyzed      int  `json:"total_analyzed"`
	TotalCases         int  `json:"total_cases_found"`
	FactualMatchCount  *int `json:"factual_match_count,omitempty"` // fact/mixed queries only
}

// Decision is the structured result of should-refine, intended to be logged
// verbatim by the caller.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Stats    Stats  `json:"stats"`
}

func countRanked(doc *types.SessionDocument, threshold int) int {
	n := 0
	for i := range doc.Analyzed {
		if doc.Analyzed[i].RelevanceRanking >= threshold {
			n++
		}
	}
	return n
}

func collectStats(doc *types.SessionDocument, cfg config.RefineConfig) Stats {
	stats := Stats{
		HighRelevanceCount: countRanked(doc, cfg.HighRelevanceThreshold),
		UnexploredLeads:    leads.CountUnexplored(doc),
		TotalAnalyzed:      len(doc.Analyzed),
		TotalCases:         len(doc.Cases),
	}
	switch doc.ParsedQuery.QueryType {
	case "fact", "mixed":
		n := countRanked(doc, cfg.FactualRelevanceThreshold)
		stats.FactualMatchCount = &n
	}
	return stats
}

// ShouldRefine decides whether to run another research round. Policy:
// depth "deep" always refines, "quick" always skips, "unspecified" refines
// while high-relevance coverage or lead exhaustion thresholds are unmet.
func ShouldRefine(doc *types.SessionDocument, cfg config.RefineConfig) Decision {
	stats := collectStats(doc, cfg)

	switch doc.ParsedQuery.DepthPreference {
	case types.DepthQuick:
		return Decision{
			Decision: DecisionSkip,
			Reason:   "Quick mode requested by user",
			Stats:    stats,
		}
	case types.DepthDeep:
		return Decision{
			Decision: DecisionRefine,
			Reason:   "Deep research mode requested by user",
			Stats:    stats,
		}
	}

	var reasons []string
	shouldRefine := false

	if stats.HighRelevanceCount < cfg.MinHighRelevance {
		reasons = append(reasons, fmt.Sprintf("Only %d cases with relevance >= %d (threshold: %d)",
			stats.HighRelevanceCount, cfg.HighRelevanceThreshold, cfg.MinHighRelevance))
		shouldRefine = true
	}

	if stats.UnexploredLeads > cfg.LeadThreshold {
		reasons = append(reasons, fmt.Sprintf("%d unexplored leads from analyzed cases (threshold: %d)",
			stats.UnexploredLeads, cfg.LeadThreshold))
		shouldRefine = true
	}

	if stats.FactualMatchCount != nil && *stats.FactualMatchCount < cfg.MinHighRelevance {
		reasons = append(reasons, fmt.Sprintf("Only %d cases with factual relevance >= %d - analogous expansion needed",
			*stats.FactualMatchCount, cfg.FactualRelevanceThreshold))
		shouldRefine = true
	}

	decision := DecisionSkip
	if shouldRefine {
		decision = DecisionRefine
	} else {
		reasons = append(reasons,
			fmt.Sprintf("%d cases with relevance >= %d", stats.HighRelevanceCount, cfg.HighRelevanceThreshold),
			fmt.Sprintf("Only %d unexplored leads remaining", stats.UnexploredLeads))
	}

	result := Decision{
		Decision: decision,
		Reason:   strings.Join(reasons, "; "),
		Stats:    stats,
	}
	logging.Get(logging.CategoryRefine).Info("should-refine: %s (%s)", result.Decision, result.Reason)
	return result
}

// OverlapResult is the structured result of the diminishing-returns check.
type OverlapResult struct {
	Decision        string  `json:"decision"`
	Reason          string  `json:"reason"`
	OverlapPct      float64 `json:"overlap_pct"`
	NewCasesInRound int     `json:"new_cases_in_round"`
	AlreadyAnalyzed int     `json:"already_analyzed"`
}

// CheckDiminishingReturns computes, for the given round, the fraction of that
// round's found cluster identifiers already present in the analyzed-case
// collection. At or above the overlap threshold new searches are mostly
// rediscovering known cases and the answer is stop.
func CheckDiminishingReturns(doc *types.SessionDocument, round int, cfg config.RefineConfig) OverlapResult {
	var roundIDs []int64
	for i := range doc.IterationLog {
		if doc.IterationLog[i].Round == round {
			roundIDs = append(roundIDs, doc.IterationLog[i].ClusterIDs...)
		}
	}

	if len(roundIDs) == 0 {
		return OverlapResult{
			Decision: DecisionContinue,
			Reason:   fmt.Sprintf("No data for round %d", round),
		}
	}

	unique := make(map[int64]bool, len(roundIDs))
	for _, id := range roundIDs {
		unique[id] = true
	}

	analyzed := doc.AnalyzedIDs()
	overlap := 0
	for id := range unique {
		if analyzed[id] {
			overlap++
		}
	}

	pct := float64(overlap) / float64(len(unique))
	decision := DecisionContinue
	if pct >= cfg.OverlapThreshold {
		decision = DecisionStop
	}

	return OverlapResult{
		Decision:        decision,
		Reason:          fmt.Sprintf("%d%% of round %d results already analyzed", int(pct*100), round),
		OverlapPct:      pct,
		NewCasesInRound: len(unique),
		AlreadyAnalyzed: overlap,
	}
}

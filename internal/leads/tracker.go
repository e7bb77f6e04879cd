// Package leads maintains the set of follow-ups not yet searched: citations
// to resolve and new terminology discovered during analysis. Leads are keyed
// by a normalized form of their text so trivially different phrasings of the
// same citation collapse to one lead. Exploration is sticky: the explored set
// only grows, and an explored key is never re-offered even if rediscovered
// verbatim by a later analysis.
package leads

import (
	"strings"

	"casetrail/internal/logging"
	"casetrail/internal/types"
)

// NormalizeKey derives the identity key for a lead: lowercased, whitespace
// collapsed, trailing punctuation dropped.
func NormalizeKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	key = strings.Join(strings.Fields(key), " ")
	return strings.TrimRight(key, ".,;:")
}

func exploredSet(doc *types.SessionDocument) map[string]bool {
	set := make(map[string]bool, len(doc.ExploredLeads))
	for _, k := range doc.ExploredLeads {
		set[k] = true
	}
	return set
}

func pendingSet(doc *types.SessionDocument) map[string]bool {
	set := make(map[string]bool, len(doc.PendingLeads))
	for _, l := range doc.PendingLeads {
		set[l.Key] = true
	}
	return set
}

// add inserts a lead unless its key is empty or already pending. Leads whose
// key is already explored are still recorded (for the audit trail) but will
// never be offered by Unexplored.
func add(doc *types.SessionDocument, pending map[string]bool, lead types.Lead) bool {
	lead.Key = NormalizeKey(lead.Text)
	if lead.Key == "" || pending[lead.Key] {
		return false
	}
	pending[lead.Key] = true
	doc.PendingLeads = append(doc.PendingLeads, lead)
	return true
}

// ExtractFromAnalysis scans an analyzed record's follow-up fields and inserts
// each cited-case mention as a citation lead and each new search term as a
// terminology lead. Returns the number of leads added.
func ExtractFromAnalysis(doc *types.SessionDocument, a *types.AnalyzedCase) int {
	if a.FollowUp == nil {
		return 0
	}

	pending := pendingSet(doc)
	added := 0
	for _, ref := range a.FollowUp.CasesToExamine {
		if add(doc, pending, types.Lead{
			Kind:            types.LeadCitation,
			Text:            ref,
			SourceClusterID: a.ClusterID,
			SourceCase:      a.CaseName,
		}) {
			added++
		}
	}
	for _, term := range a.FollowUp.NewSearchTerms {
		if add(doc, pending, types.Lead{
			Kind:            types.LeadTerminology,
			Text:            term,
			SourceClusterID: a.ClusterID,
			SourceCase:      a.CaseName,
		}) {
			added++
		}
	}

	if added > 0 {
		logging.Get(logging.CategoryLeads).Debug("extracted %d leads from cluster %d", added, a.ClusterID)
	}
	return added
}

// Add inserts externally supplied leads (the orchestrator can inject search
// terms directly). Returns the number actually added.
func Add(doc *types.SessionDocument, incoming []types.Lead) int {
	pending := pendingSet(doc)
	added := 0
	for _, l := range incoming {
		if l.Kind == "" {
			l.Kind = types.LeadTerminology
		}
		if add(doc, pending, l) {
			added++
		}
	}
	return added
}

// Unexplored returns the current leads not yet marked explored, partitioned
// by kind. Pure read, no side effect.
func Unexplored(doc *types.SessionDocument) (citations, terminology []types.Lead) {
	explored := exploredSet(doc)
	for _, l := range doc.PendingLeads {
		if explored[l.Key] {
			continue
		}
		switch l.Kind {
		case types.LeadCitation:
			citations = append(citations, l)
		default:
			terminology = append(terminology, l)
		}
	}
	return citations, terminology
}

// CountUnexplored returns the total number of unexplored leads.
func CountUnexplored(doc *types.SessionDocument) int {
	c, t := Unexplored(doc)
	return len(c) + len(t)
}

// MarkExplored marks each key as explored. Keys are normalized before the
// membership check, unknown keys are ignored, and re-marking is a no-op, so
// the operation is idempotent. Returns the number of keys newly marked.
func MarkExplored(doc *types.SessionDocument, keys []string) int {
	explored := exploredSet(doc)
	marked := 0
	for _, raw := range keys {
		key := NormalizeKey(raw)
		if key == "" || explored[key] {
			continue
		}
		explored[key] = true
		doc.ExploredLeads = append(doc.ExploredLeads, key)
		marked++
	}
	return marked
}

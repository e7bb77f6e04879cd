// Package merge absorbs externally-produced batches of case data into the
// session document without losing previously recorded analysis or corrupting
// identity. Malformed entries within a batch are skipped and counted, never
// fatal; structural problems (dangling references, unparsable files) abort
// the single operation with the document untouched.
package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"casetrail/internal/leads"
	"casetrail/internal/logging"
	"casetrail/internal/types"
)

// ErrDanglingReference is returned when an analysis references a cluster
// identifier absent from the cases table. The caller must ingest the case
// first; the document is not mutated.
var ErrDanglingReference = errors.New("analysis references unknown case")

// ErrRoundRegression is returned when an ingest names a round lower than the
// last completed round. The iteration log is append-only.
var ErrRoundRegression = errors.New("round number must not decrease")

// IngestResult summarizes one batch ingestion.
type IngestResult struct {
	Round      int `json:"round"`
	NewCases   int `json:"new_cases_added"`
	Duplicates int `json:"duplicates_skipped"`
	Rejected   int `json:"rejected"`
	Searches   int `json:"searches_logged"`
	TotalCases int `json:"total_cases_in_state"`
}

// resolveRound derives the effective round for an ingest. Zero means "next
// round". An ingest may add to the current round (several strategies run per
// round) but never to an earlier one.
func resolveRound(doc *types.SessionDocument, round int) (int, error) {
	last := doc.LastRound()
	if round <= 0 {
		return last + 1, nil
	}
	if round < last {
		return 0, fmt.Errorf("%w: got %d, last is %d", ErrRoundRegression, round, last)
	}
	return round, nil
}

// logRound records a batch's counts in the iteration log, merging into the
// current round's entry when one exists.
func logRound(doc *types.SessionDocument, round, ingested, rejected, duplicates int, ids []int64) {
	if n := len(doc.IterationLog); n > 0 && doc.IterationLog[n-1].Round == round {
		e := &doc.IterationLog[n-1]
		e.Ingested += ingested
		e.Rejected += rejected
		e.Duplicates += duplicates
		e.ClusterIDs = append(e.ClusterIDs, ids...)
		return
	}
	doc.IterationLog = append(doc.IterationLog, types.IterationLogEntry{
		Round:      round,
		Timestamp:  time.Now(),
		Ingested:   ingested,
		Rejected:   rejected,
		Duplicates: duplicates,
		ClusterIDs: ids,
	})
}

// mergeScoreFields copies score-bearing fields onto an existing record, and
// only when the new value is present. A scored case is never silently
// reverted to unscored; descriptive fields keep the first writer's values.
func mergeScoreFields(existing *types.CaseRecord, incoming *types.CaseRecord) {
	if incoming.InitialRelevance != nil {
		v := types.Clamp(*incoming.InitialRelevance)
		existing.InitialRelevance = &v
	}
	if incoming.RelevanceNote != "" {
		existing.RelevanceNote = incoming.RelevanceNote
	}
}

func ingest(doc *types.SessionDocument, raw []json.RawMessage, provenance string, round int, keepScores bool) (ingested, rejected, duplicates int, ids []int64) {
	log := logging.Get(logging.CategoryMerge)
	for _, entry := range raw {
		rec, err := decodeCaseRecord(entry)
		if err != nil {
			rejected++
			log.Warn("rejected batch entry: %v", err)
			continue
		}
		ids = append(ids, rec.ClusterID)

		if existing := doc.FindCase(rec.ClusterID); existing != nil {
			duplicates++
			mergeScoreFields(existing, &rec)
			continue
		}

		rec.Round = round
		rec.Provenance = provenance
		if rec.InitialRelevance != nil {
			if keepScores {
				v := types.Clamp(*rec.InitialRelevance)
				rec.InitialRelevance = &v
			} else {
				// Externally-sourced cases enter unscored; they must be
				// scored before they are eligible for deep analysis.
				rec.InitialRelevance = nil
				rec.RelevanceNote = ""
			}
		}
		doc.Cases = append(doc.Cases, rec)
		ingested++
	}
	return ingested, rejected, duplicates, ids
}

// IngestSearchBatch merges one search agent batch into the document:
// deduplicates by cluster identifier, logs the executed searches under the
// strategy and round, and appends an iteration-log entry.
func IngestSearchBatch(doc *types.SessionDocument, batch *SearchBatch, round int) (*IngestResult, error) {
	effective, err := resolveRound(doc, round)
	if err != nil {
		return nil, err
	}

	provenance := batch.StrategyID
	if provenance == "" {
		provenance = "search"
	}
	ingested, rejected, duplicates, ids := ingest(doc, batch.Cases, provenance, effective, true)

	for _, s := range batch.Searches {
		s.StrategyID = batch.StrategyID
		s.Round = effective
		doc.SearchTerms = append(doc.SearchTerms, s)
	}

	doc.DuplicatesSkipped += duplicates
	logRound(doc, effective, ingested, rejected, duplicates, ids)

	logging.Get(logging.CategoryMerge).Info("round %d strategy %s: %d new, %d duplicate, %d rejected",
		effective, batch.StrategyID, ingested, duplicates, rejected)

	return &IngestResult{
		Round:      effective,
		NewCases:   ingested,
		Duplicates: duplicates,
		Rejected:   rejected,
		Searches:   len(batch.Searches),
		TotalCases: len(doc.Cases),
	}, nil
}

// IngestExternalBatch merges a batch produced by a non-search mechanism.
// Same contract as IngestSearchBatch, but provenance is the producing source
// kind and newly added cases enter unscored.
func IngestExternalBatch(doc *types.SessionDocument, batch *ExternalBatch, sourceKind string, round int) (*IngestResult, error) {
	if sourceKind == "" {
		return nil, fmt.Errorf("%w: missing source kind", ErrMalformedBatch)
	}
	effective, err := resolveRound(doc, round)
	if err != nil {
		return nil, err
	}

	ingested, rejected, duplicates, ids := ingest(doc, batch.Cases, sourceKind, effective, false)

	doc.DuplicatesSkipped += duplicates
	logRound(doc, effective, ingested, rejected, duplicates, ids)

	logging.Get(logging.CategoryMerge).Info("round %d source %s: %d new, %d duplicate, %d rejected",
		effective, sourceKind, ingested, duplicates, rejected)

	return &IngestResult{
		Round:      effective,
		NewCases:   ingested,
		Duplicates: duplicates,
		Rejected:   rejected,
		TotalCases: len(doc.Cases),
	}, nil
}

// ScoreResult summarizes one score merge.
type ScoreResult struct {
	Updated int `json:"updated"`
	Ignored int `json:"ignored"`
}

// MergeScores applies an external scoring step's output. Only cluster
// identifiers already present in the cases table are updated; unknown
// identifiers are silently ignored, which guards against a scorer inventing
// identifiers. Every value is clamped on write.
func MergeScores(doc *types.SessionDocument, scores map[string]ScoreEntry) *ScoreResult {
	res := &ScoreResult{}
	for key, entry := range scores {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			res.Ignored++
			continue
		}
		rec := doc.FindCase(id)
		if rec == nil {
			res.Ignored++
			continue
		}
		v := types.Clamp(entry.Relevance)
		rec.InitialRelevance = &v
		if entry.Note != "" {
			rec.RelevanceNote = entry.Note
		}
		res.Updated++
	}
	logging.Get(logging.CategoryMerge).Info("score merge: %d updated, %d ignored", res.Updated, res.Ignored)
	return res
}

// AnalysisResult summarizes one add-analysis operation.
type AnalysisResult struct {
	ClusterID     int64 `json:"cluster_id"`
	Replaced      bool  `json:"replaced"`
	LeadsAdded    int   `json:"leads_added"`
	TotalAnalyzed int   `json:"total_analyzed"`
	PendingLeads  int   `json:"pending_leads"`
}

// AddAnalysis inserts or replaces the analyzed-case entry for one case.
// The cluster identifier must reference an existing case record; otherwise
// the operation fails with ErrDanglingReference and the document is left
// untouched. Reapplying the same analysis is a no-op change. Follow-up leads
// embedded in the record are extracted into the lead tracker.
func AddAnalysis(doc *types.SessionDocument, a types.AnalyzedCase) (*AnalysisResult, error) {
	rec := doc.FindCase(a.ClusterID)
	if rec == nil {
		return nil, fmt.Errorf("%w: cluster %d", ErrDanglingReference, a.ClusterID)
	}

	a.RelevanceRanking = types.Clamp(a.RelevanceRanking)
	if a.CaseName == "" {
		a.CaseName = rec.CaseName
	}
	if a.URL == "" {
		a.URL = rec.URL
	}

	replaced := false
	if existing := doc.FindAnalysis(a.ClusterID); existing != nil {
		*existing = a
		replaced = true
	} else {
		doc.Analyzed = append(doc.Analyzed, a)
	}

	added := leads.ExtractFromAnalysis(doc, &a)

	if a.PivotalCase != "" && !hasPivotal(doc, a.PivotalCase) {
		doc.PivotalCases = append(doc.PivotalCases, types.PivotalCase{Name: a.PivotalCase})
	}

	return &AnalysisResult{
		ClusterID:     a.ClusterID,
		Replaced:      replaced,
		LeadsAdded:    added,
		TotalAnalyzed: len(doc.Analyzed),
		PendingLeads:  len(doc.PendingLeads),
	}, nil
}

func hasPivotal(doc *types.SessionDocument, name string) bool {
	for _, p := range doc.PivotalCases {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Correction records one clamp applied by ValidateScores.
type Correction struct {
	ClusterID int64  `json:"cluster_id"`
	Field     string `json:"field"`
	From      int    `json:"from"`
	To        int    `json:"to"`
}

// ValidateScores is a defense-in-depth sweep: clamps every relevance value
// across case records and analyzed cases into [1,5] and reports every
// correction made. Safe to run at any time.
func ValidateScores(doc *types.SessionDocument) []Correction {
	var corrections []Correction

	for i := range doc.Cases {
		rec := &doc.Cases[i]
		if rec.InitialRelevance == nil {
			continue
		}
		if v := types.Clamp(*rec.InitialRelevance); v != *rec.InitialRelevance {
			corrections = append(corrections, Correction{
				ClusterID: rec.ClusterID, Field: "initial_relevance",
				From: *rec.InitialRelevance, To: v,
			})
			rec.InitialRelevance = &v
		}
	}

	for i := range doc.Analyzed {
		a := &doc.Analyzed[i]
		if v := types.Clamp(a.RelevanceRanking); v != a.RelevanceRanking {
			corrections = append(corrections, Correction{
				ClusterID: a.ClusterID, Field: "relevance_ranking",
				From: a.RelevanceRanking, To: v,
			})
			a.RelevanceRanking = v
		}
	}

	if len(corrections) > 0 {
		logging.Get(logging.CategoryMerge).Warn("validate-scores applied %d corrections", len(corrections))
	}
	return corrections
}

// HistoryResult summarizes one subsequent-history merge.
type HistoryResult struct {
	CasesChecked int `json:"cases_checked"`
	Flagged      int `json:"flagged"`
}

// AddSubsequentHistory stores flagged negative-treatment results, keyed by
// cluster identifier. Only flagged cases are stored; absence of a key means
// "not flagged", never "confirmed good".
func AddSubsequentHistory(doc *types.SessionDocument, flagged []HistoryEntry, casesChecked int) *HistoryResult {
	if doc.SubsequentHistory == nil {
		doc.SubsequentHistory = make(map[string]types.HistoryFlag)
	}
	added := 0
	for _, entry := range flagged {
		if err := validate.Struct(entry); err != nil {
			logging.Get(logging.CategoryMerge).Warn("rejected history entry: %v", err)
			continue
		}
		confidence := entry.Confidence
		if confidence == "" {
			confidence = "uncertain"
		}
		doc.SubsequentHistory[strconv.FormatInt(entry.ClusterID, 10)] = types.HistoryFlag{
			PrecedentialStatus: entry.PrecedentialStatus,
			Detail:             entry.Detail,
			Confidence:         confidence,
			ReversingCase:      entry.ReversingCase,
		}
		added++
	}
	return &HistoryResult{CasesChecked: casesChecked, Flagged: added}
}

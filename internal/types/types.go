// Package types defines the session document and the entities it aggregates.
// The session document is the single root aggregate for one research request:
// every engine operation loads it whole, mutates an in-memory copy, and hands
// it back to the store for one atomic save.
package types

import "time"

// Relevance bounds. Every relevance or ranking value is clamped into this
// range on write; nothing outside it ever persists.
const (
	RelevanceMin = 1
	RelevanceMax = 5
)

// Depth preferences parsed from the original request.
const (
	DepthDeep        = "deep"
	DepthQuick       = "quick"
	DepthUnspecified = "unspecified"
)

// Provenance source kinds for externally-sourced batches.
const (
	SourceCitationResolution = "citation_resolution"
	SourceCitingDiscovery    = "citing_discovery"
)

// ParsedQuery carries the request metadata the decision engine reads.
type ParsedQuery struct {
	Query           string   `json:"query"`
	QueryType       string   `json:"query_type,omitempty"` // legal, fact, mixed
	DepthPreference string   `json:"depth_preference,omitempty"`
	LegalQuestions  []string `json:"legal_questions,omitempty"`
}

// CaseRecord is a lightweight search-result entry for one case, pre-analysis.
// Unique by ClusterID. The first writer's descriptive fields win; later
// writers may only update the score fields.
type CaseRecord struct {
	ClusterID        int64  `json:"cluster_id"`
	CaseName         string `json:"case_name"`
	Court            string `json:"court,omitempty"`
	DateFiled        string `json:"date_filed,omitempty"` // YYYY-MM-DD
	CiteCount        int    `json:"cite_count,omitempty"`
	Snippet          string `json:"snippet,omitempty"`
	URL              string `json:"url,omitempty"`
	InitialRelevance *int   `json:"initial_relevance,omitempty"` // nil until scored
	RelevanceNote    string `json:"relevance_note,omitempty"`
	ContextMatch     string `json:"context_match,omitempty"` // full, partial, absent, n/a
	Provenance       string `json:"provenance,omitempty"` // strategy id or source kind
	Round            int    `json:"round,omitempty"`
}

// Scored reports whether the record has an initial relevance score.
func (c *CaseRecord) Scored() bool { return c.InitialRelevance != nil }

// SearchStrategy records one search executed in a round.
type SearchStrategy struct {
	StrategyID string `json:"strategy"`
	Type       string `json:"type,omitempty"` // keyword, semantic, citing
	Query      string `json:"query"`
	Court      string `json:"court_filter,omitempty"`
	Round      int    `json:"round"`
}

// Excerpt is one quoted fragment inside an analyzed case.
type Excerpt struct {
	Text string `json:"text"`
}

// FollowUp holds the leads an analysis surfaced for later rounds.
type FollowUp struct {
	CasesToExamine []string `json:"cases_to_examine,omitempty"`
	NewSearchTerms []string `json:"new_search_terms,omitempty"`
}

// AnalyzedCase is the deep-read output for one case. Unique by ClusterID;
// its ClusterID must reference an existing CaseRecord.
type AnalyzedCase struct {
	ClusterID        int64     `json:"cluster_id"`
	CaseName         string    `json:"case_name,omitempty"`
	RelevanceRanking int       `json:"relevance_ranking"`
	Position         string    `json:"position,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Excerpts         []Excerpt `json:"excerpts,omitempty"`
	FollowUp         *FollowUp `json:"follow_up,omitempty"`
	PivotalCase      string    `json:"pivotal_case,omitempty"`
	URL              string    `json:"url,omitempty"`
}

// Lead kinds.
const (
	LeadCitation    = "citation"
	LeadTerminology = "terminology"
)

// Lead is an unexplored follow-up discovered during analysis: a citation to
// resolve or a new search term. Deduplicated by the normalized Key.
type Lead struct {
	Kind            string `json:"kind"`
	Text            string `json:"text"`
	Key             string `json:"key"` // normalized form, the identity
	SourceClusterID int64  `json:"source_cluster_id,omitempty"`
	SourceCase      string `json:"source_case,omitempty"`
}

// IterationLogEntry records one completed round. Append-only; round numbers
// strictly increase.
type IterationLogEntry struct {
	Round      int       `json:"round"`
	Timestamp  time.Time `json:"timestamp"`
	Ingested   int       `json:"ingested"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	// ClusterIDs found in this round (new and duplicate alike), the input to
	// the diminishing-returns check.
	ClusterIDs []int64 `json:"cluster_ids,omitempty"`
}

// HistoryFlag records negative later treatment of an analyzed case. Present
// only for flagged cases; absence means "not flagged", never "confirmed good".
type HistoryFlag struct {
	PrecedentialStatus string `json:"precedential_status"`
	Detail             string `json:"detail,omitempty"`
	Confidence         string `json:"confidence,omitempty"`
	ReversingCase      string `json:"reversing_case,omitempty"`
}

// PivotalCase is a landmark the analysis phase identified; its year feeds the
// candidate-ranking recency tiebreak.
type PivotalCase struct {
	Name      string `json:"name"`
	ClusterID int64  `json:"cluster_id,omitempty"`
}

// SessionError is one error entry in the session log.
type SessionError struct {
	Level     string    `json:"level"` // warn, fatal
	Message   string    `json:"message"`
	Phase     string    `json:"phase,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionLog accumulates errors and notes during a session and is folded into
// the JSONL session record at finalize.
type SessionLog struct {
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Errors    []SessionError `json:"errors,omitempty"`
	Notes     []string       `json:"notes,omitempty"`
}

// QuoteResult is the terminal outcome for one excerpt.
type QuoteResult struct {
	ClusterID      int64   `json:"cluster_id"`
	CaseName       string  `json:"case_name,omitempty"`
	ExcerptIndex   int     `json:"excerpt_index"`
	ExcerptPreview string  `json:"excerpt_preview,omitempty"`
	Status         string  `json:"status"`     // verified, likely_match, possible_match, not_found, not_found_truncated, skipped
	MatchTier      string  `json:"match_tier"` // normalized_exact, token_sequence, fuzzy, none
	Similarity     float64 `json:"similarity"`
	// Matched token span in the source, for downstream highlighting (tiers 2-3).
	MatchStart   int    `json:"match_start,omitempty"`
	MatchEnd     int    `json:"match_end,omitempty"`
	MatchPreview string `json:"match_preview,omitempty"`
}

// QuoteValidation is the persisted outcome of one verification run.
type QuoteValidation struct {
	ValidatedAt time.Time      `json:"validated_at"`
	Summary     map[string]int `json:"summary"`
	Results     []QuoteResult  `json:"results"`
}

// SessionDocument is the root aggregate: exactly one per research request,
// read-modify-written as a whole on every operation.
type SessionDocument struct {
	RequestID    string      `json:"request_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	WorkflowMode string      `json:"workflow_mode,omitempty"` // interactive, email, continue
	ParsedQuery  ParsedQuery `json:"parsed_query"`

	Cases         []CaseRecord     `json:"cases_table,omitempty"`
	SearchTerms   []SearchStrategy `json:"search_terms_table,omitempty"`
	Analyzed      []AnalyzedCase   `json:"analyzed_cases,omitempty"`
	PendingLeads  []Lead           `json:"pending_leads,omitempty"`
	ExploredLeads []string         `json:"explored_leads,omitempty"` // normalized keys, only-add
	IterationLog  []IterationLogEntry `json:"iteration_log,omitempty"`

	SubsequentHistory map[string]HistoryFlag `json:"subsequent_history,omitempty"`
	PivotalCases      []PivotalCase          `json:"pivotal_cases,omitempty"`
	DuplicatesSkipped int                    `json:"total_duplicates_skipped,omitempty"`

	QuoteValidation *QuoteValidation `json:"quote_validation,omitempty"`
	SessionLog      *SessionLog      `json:"session_log,omitempty"`
}

// FindCase returns the case record for id, or nil.
func (d *SessionDocument) FindCase(id int64) *CaseRecord {
	for i := range d.Cases {
		if d.Cases[i].ClusterID == id {
			return &d.Cases[i]
		}
	}
	return nil
}

// FindAnalysis returns the analyzed-case entry for id, or nil.
func (d *SessionDocument) FindAnalysis(id int64) *AnalyzedCase {
	for i := range d.Analyzed {
		if d.Analyzed[i].ClusterID == id {
			return &d.Analyzed[i]
		}
	}
	return nil
}

// AnalyzedIDs returns the set of cluster ids with an analyzed-case entry.
func (d *SessionDocument) AnalyzedIDs() map[int64]bool {
	ids := make(map[int64]bool, len(d.Analyzed))
	for i := range d.Analyzed {
		ids[d.Analyzed[i].ClusterID] = true
	}
	return ids
}

// LastRound returns the highest round number in the iteration log, or 0.
func (d *SessionDocument) LastRound() int {
	if len(d.IterationLog) == 0 {
		return 0
	}
	return d.IterationLog[len(d.IterationLog)-1].Round
}

// Clamp forces v into [RelevanceMin, RelevanceMax].
func Clamp(v int) int {
	if v < RelevanceMin {
		return RelevanceMin
	}
	if v > RelevanceMax {
		return RelevanceMax
	}
	return v
}

package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"casetrail/internal/types"
)

// ErrMalformedBatch is returned when a batch file cannot be parsed at all.
// The operation aborts and the session document is left unmodified.
var ErrMalformedBatch = errors.New("malformed batch")

// validate checks decoded entries at the ingestion boundary. Entries that
// fail go to the skip-and-count path, never into the document.
var validate = validator.New()

// SearchBatch is one search agent output: the cases it surfaced plus the
// searches it executed under one strategy.
type SearchBatch struct {
	StrategyID string                 `json:"strategy_id"`
	Searches   []types.SearchStrategy `json:"searches_executed"`
	Cases      []json.RawMessage      `json:"cases"`
}

// ExternalBatch is a batch produced by a non-search mechanism (citation
// resolution, citing-case discovery).
type ExternalBatch struct {
	Cases []json.RawMessage `json:"cases"`
}

// ScoreEntry is one entry of a score map: a relevance integer plus a
// one-sentence note from the external scoring step.
type ScoreEntry struct {
	Relevance int    `json:"relevance"`
	Note      string `json:"note,omitempty"`
}

// HistoryEntry is one flagged subsequent-history result.
type HistoryEntry struct {
	ClusterID          int64  `json:"cluster_id" validate:"required,gt=0"`
	PrecedentialStatus string `json:"precedential_status" validate:"required"`
	Detail             string `json:"detail"`
	Confidence         string `json:"confidence"`
	ReversingCase      string `json:"reversing_case"`
}

// caseEntry is the validated shape a batch entry must satisfy before it
// reaches the cases table.
type caseEntry struct {
	ClusterID int64  `validate:"required,gt=0"`
	CaseName  string `validate:"required"`
}

// decodeCaseRecord coerces one loosely-shaped batch entry into a CaseRecord.
// Cluster ids may arrive as numbers or numeric strings; relevance may be
// absent, null, "n/a" or a number.
func decodeCaseRecord(raw json.RawMessage) (types.CaseRecord, error) {
	var aux struct {
		ClusterID        interface{} `json:"cluster_id"`
		CaseName         string      `json:"case_name"`
		Court            string      `json:"court"`
		DateFiled        string      `json:"date_filed"`
		CiteCount        int         `json:"cite_count"`
		Snippet          string      `json:"snippet"`
		URL              string      `json:"url"`
		InitialRelevance interface{} `json:"initial_relevance"`
		RelevanceNote    string      `json:"relevance_note"`
		ContextMatch     string      `json:"context_match"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return types.CaseRecord{}, fmt.Errorf("unparsable entry: %w", err)
	}

	id, ok := types.ExtractInt64(aux.ClusterID)
	if !ok {
		return types.CaseRecord{}, fmt.Errorf("entry missing cluster identifier")
	}
	rel, ok := types.ExtractRelevance(aux.InitialRelevance)
	if !ok {
		// A garbled score never blocks the record; it just stays unscored.
		rel = nil
	}

	rec := types.CaseRecord{
		ClusterID:        id,
		CaseName:         aux.CaseName,
		Court:            aux.Court,
		DateFiled:        aux.DateFiled,
		CiteCount:        aux.CiteCount,
		Snippet:          aux.Snippet,
		URL:              aux.URL,
		InitialRelevance: rel,
		RelevanceNote:    aux.RelevanceNote,
		ContextMatch:     aux.ContextMatch,
	}

	if err := validate.Struct(caseEntry{ClusterID: rec.ClusterID, CaseName: rec.CaseName}); err != nil {
		return types.CaseRecord{}, fmt.Errorf("invalid entry for cluster %d: %w", rec.ClusterID, err)
	}
	return rec, nil
}

func readBatchFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedBatch, path, err)
	}
	return nil
}

// LoadSearchBatch reads one search agent output file.
func LoadSearchBatch(path string) (*SearchBatch, error) {
	var b SearchBatch
	if err := readBatchFile(path, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadExternalBatch reads one externally-sourced batch file. Accepts either
// {"cases": [...]} or a bare array.
func LoadExternalBatch(path string) (*ExternalBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	var b ExternalBatch
	if err := json.Unmarshal(data, &b); err == nil && b.Cases != nil {
		return &b, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBatch, path, err)
	}
	return &ExternalBatch{Cases: arr}, nil
}

// LoadScoreMap reads a cluster-id -> score mapping file.
func LoadScoreMap(path string) (map[string]ScoreEntry, error) {
	var m map[string]ScoreEntry
	if err := readBatchFile(path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadAnalyses reads analyzed-case records: a single object or an array.
func LoadAnalyses(path string) ([]types.AnalyzedCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	var one types.AnalyzedCase
	if err := json.Unmarshal(data, &one); err == nil && one.ClusterID != 0 {
		return []types.AnalyzedCase{one}, nil
	}
	var many []types.AnalyzedCase
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBatch, path, err)
	}
	return many, nil
}

// LoadHistory reads subsequent-history checker output: a single object or an
// array of flagged cases.
func LoadHistory(path string) ([]HistoryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	var one HistoryEntry
	if err := json.Unmarshal(data, &one); err == nil && one.ClusterID != 0 {
		return []HistoryEntry{one}, nil
	}
	var many []HistoryEntry
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBatch, path, err)
	}
	return many, nil
}

// LoadLeads reads orchestrator-injected leads: a single object or an array.
func LoadLeads(path string) ([]types.Lead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	var one types.Lead
	if err := json.Unmarshal(data, &one); err == nil && one.Text != "" {
		return []types.Lead{one}, nil
	}
	var many []types.Lead
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBatch, path, err)
	}
	return many, nil
}

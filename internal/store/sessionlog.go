package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"casetrail/internal/types"
)

// =============================================================================
// SESSION LOG (errors, notes, JSONL session record)
// =============================================================================

func ensureSessionLog(doc *types.SessionDocument) *types.SessionLog {
	if doc.SessionLog == nil {
		doc.SessionLog = &types.SessionLog{}
	}
	if doc.SessionLog.StartedAt == nil {
		now := time.Now()
		doc.SessionLog.StartedAt = &now
	}
	return doc.SessionLog
}

// LogError appends an error entry to the document's session log.
func LogError(doc *types.SessionDocument, level, message, phase string) {
	sl := ensureSessionLog(doc)
	sl.Errors = append(sl.Errors, types.SessionError{
		Level:     level,
		Message:   message,
		Phase:     phase,
		Timestamp: time.Now(),
	})
}

// LogNote appends a note to the document's session log.
func LogNote(doc *types.SessionDocument, message string) {
	sl := ensureSessionLog(doc)
	sl.Notes = append(sl.Notes, message)
}

// SessionRecord is the one-line summary appended to the JSONL session log when
// a session finalizes.
type SessionRecord struct {
	RequestID     string    `json:"request_id"`
	Query         string    `json:"query"`
	QueryType     string    `json:"query_type,omitempty"`
	WorkflowMode  string    `json:"workflow_mode,omitempty"`
	StartedAt     string    `json:"started_at,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
	Rounds        int       `json:"rounds"`
	TotalCases    int       `json:"total_cases"`
	TotalAnalyzed int       `json:"total_analyzed"`
	TotalSearches int       `json:"total_searches"`
	PendingLeads  int       `json:"pending_leads"`
	ErrorCount    int       `json:"error_count"`
	Notes         []string  `json:"notes,omitempty"`
}

// BuildSessionRecord assembles the session record from the document.
func BuildSessionRecord(doc *types.SessionDocument) SessionRecord {
	rec := SessionRecord{
		RequestID:     doc.RequestID,
		Query:         doc.ParsedQuery.Query,
		QueryType:     doc.ParsedQuery.QueryType,
		WorkflowMode:  doc.WorkflowMode,
		CompletedAt:   time.Now(),
		Rounds:        len(doc.IterationLog),
		TotalCases:    len(doc.Cases),
		TotalAnalyzed: len(doc.Analyzed),
		TotalSearches: len(doc.SearchTerms),
		PendingLeads:  len(doc.PendingLeads),
	}
	if doc.SessionLog != nil {
		rec.ErrorCount = len(doc.SessionLog.Errors)
		rec.Notes = doc.SessionLog.Notes
		if doc.SessionLog.StartedAt != nil {
			rec.StartedAt = doc.SessionLog.StartedAt.Format(time.RFC3339)
		}
	}
	return rec
}

// AppendSessionRecord appends one JSONL line to the session log file.
func AppendSessionRecord(path string, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append session record: %w", err)
	}
	return nil
}

// Package main: session lifecycle commands - init, summary, session log.
package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casetrail/internal/store"
	"casetrail/internal/types"
)

// =============================================================================
// SESSION LIFECYCLE COMMANDS
// =============================================================================

var (
	initQuery     string
	initQueryType string
	initDepth     string
	initMode      string

	logLevel   string
	logPhase   string
	outputPath string
)

// initCmd creates an empty session document for a new research request.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty session document for a new research request",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		depth := initDepth
		switch depth {
		case types.DepthDeep, types.DepthQuick:
		default:
			depth = types.DepthUnspecified
		}

		doc := &types.SessionDocument{
			RequestID:    uuid.NewString(),
			WorkflowMode: initMode,
			ParsedQuery: types.ParsedQuery{
				Query:           initQuery,
				QueryType:       initQueryType,
				DepthPreference: depth,
			},
		}
		if err := r.Create(doc); err != nil {
			return err
		}

		logger.Info("session created",
			zap.String("request_id", doc.RequestID),
			zap.String("state", r.Path()))
		return printJSON(map[string]string{
			"request_id": doc.RequestID,
			"state":      r.Path(),
		})
	},
}

// summaryCmd reports summary counts and distributions for the session.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Report summary counts for the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		doc, err := r.Load()
		if err != nil {
			return err
		}

		relDist := map[int]int{}
		posDist := map[string]int{}
		for _, a := range doc.Analyzed {
			relDist[a.RelevanceRanking]++
			pos := a.Position
			if pos == "" {
				pos = "unknown"
			}
			posDist[pos]++
		}

		searchTypes := map[string]int{}
		for _, s := range doc.SearchTerms {
			searchTypes[s.Type]++
		}

		return printJSON(map[string]interface{}{
			"request_id":             doc.RequestID,
			"query_type":             doc.ParsedQuery.QueryType,
			"workflow_mode":          doc.WorkflowMode,
			"total_cases_found":      len(doc.Cases),
			"total_analyzed":         len(doc.Analyzed),
			"total_searches":         len(doc.SearchTerms),
			"rounds":                 len(doc.IterationLog),
			"search_types":           searchTypes,
			"relevance_distribution": relDist,
			"position_distribution":  posDist,
			"pending_leads":          len(doc.PendingLeads),
			"pivotal_cases":          doc.PivotalCases,
		})
	},
}

// logCmd writes error/note entries into the session log, or finalizes the
// session by appending one record to the JSONL session log file.
var logCmd = &cobra.Command{
	Use:   "log <error|note|finalize> [message]",
	Short: "Record session errors and notes, or finalize the session record",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		switch args[0] {
		case "error", "note":
			if len(args) < 2 {
				return fmt.Errorf("log %s requires a message", args[0])
			}
			_, err := r.Update(func(doc *types.SessionDocument) error {
				if args[0] == "error" {
					store.LogError(doc, logLevel, args[1], logPhase)
				} else {
					store.LogNote(doc, args[1])
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"logged": args[0], "message": args[1]})

		case "finalize":
			doc, err := r.Load()
			if err != nil {
				return err
			}
			rec := store.BuildSessionRecord(doc)
			path := outputPath
			if path == "" {
				path = cfg.Paths.SessionLog
			}
			if err := store.AppendSessionRecord(path, rec); err != nil {
				return err
			}
			return printJSON(rec)

		default:
			return fmt.Errorf("unknown log entry kind: %s", args[0])
		}
	},
}

func init() {
	initCmd.Flags().StringVar(&initQuery, "query", "", "Original research query")
	initCmd.Flags().StringVar(&initQueryType, "query-type", "", "Query type: legal, fact, mixed")
	initCmd.Flags().StringVar(&initDepth, "depth", types.DepthUnspecified, "Depth preference: deep, quick, unspecified")
	initCmd.Flags().StringVar(&initMode, "mode", "interactive", "Workflow mode: interactive, email, continue")
	_ = initCmd.MarkFlagRequired("query")

	logCmd.Flags().StringVar(&logLevel, "level", "warn", "Error level: warn, fatal")
	logCmd.Flags().StringVar(&logPhase, "phase", "", "Workflow phase the error occurred in")
	logCmd.Flags().StringVar(&outputPath, "log-file", "", "JSONL session log path (default from config)")
}

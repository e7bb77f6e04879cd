// Package main: merge engine commands - batch ingestion, score merging,
// analysis insertion, score validation, subsequent-history flags.
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casetrail/internal/merge"
	"casetrail/internal/types"
)

// =============================================================================
// MERGE ENGINE COMMANDS
// =============================================================================

var (
	ingestRound  int
	sourceKind   string
	casesChecked int
)

// ingestSearchCmd merges one search agent output file into the document.
var ingestSearchCmd = &cobra.Command{
	Use:   "ingest-search <batch.json>",
	Short: "Merge a search batch into the session document, dedup by cluster id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		batch, err := merge.LoadSearchBatch(args[0])
		if err != nil {
			return err
		}

		var result *merge.IngestResult
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			result, err = merge.IngestSearchBatch(doc, batch, ingestRound)
			return err
		}); err != nil {
			return err
		}

		logger.Info("search batch ingested",
			zap.String("strategy", batch.StrategyID),
			zap.Int("round", result.Round),
			zap.Int("new", result.NewCases),
			zap.Int("rejected", result.Rejected))
		return printJSON(result)
	},
}

// ingestExternalCmd merges a batch produced by citation resolution or
// citing-case discovery; new cases enter unscored.
var ingestExternalCmd = &cobra.Command{
	Use:   "ingest-external <batch.json>",
	Short: "Merge an externally-sourced batch (citation resolution, citing discovery)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		batch, err := merge.LoadExternalBatch(args[0])
		if err != nil {
			return err
		}

		var result *merge.IngestResult
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			result, err = merge.IngestExternalBatch(doc, batch, sourceKind, ingestRound)
			return err
		}); err != nil {
			return err
		}
		return printJSON(result)
	},
}

// mergeScoresCmd applies an external scoring step's output to known cases.
var mergeScoresCmd = &cobra.Command{
	Use:   "merge-scores <scores.json>",
	Short: "Apply a cluster-id to relevance mapping; unknown ids are ignored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		scores, err := merge.LoadScoreMap(args[0])
		if err != nil {
			return err
		}

		var result *merge.ScoreResult
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			result = merge.MergeScores(doc, scores)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(result)
	},
}

// addAnalysisCmd inserts analyzed-case records; each must reference an
// already-ingested case.
var addAnalysisCmd = &cobra.Command{
	Use:   "add-analysis <analysis.json>",
	Short: "Merge analyzed-case record(s) into the session document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		analyses, err := merge.LoadAnalyses(args[0])
		if err != nil {
			return err
		}

		var results []*merge.AnalysisResult
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			for _, a := range analyses {
				res, err := merge.AddAnalysis(doc, a)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			return nil
		}); err != nil {
			return err
		}
		return printJSON(results)
	},
}

// validateScoresCmd clamps every relevance value into range.
var validateScoresCmd = &cobra.Command{
	Use:   "validate-scores",
	Short: "Clamp every relevance value into [1,5] and report corrections",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		var corrections []merge.Correction
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			corrections = merge.ValidateScores(doc)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"corrections": corrections,
			"count":       len(corrections),
		})
	},
}

// addHistoryCmd stores flagged subsequent-history results.
var addHistoryCmd = &cobra.Command{
	Use:   "add-subsequent-history <flags.json>",
	Short: "Store flagged negative-treatment results keyed by cluster id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		flagged, err := merge.LoadHistory(args[0])
		if err != nil {
			return err
		}

		var result *merge.HistoryResult
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			result = merge.AddSubsequentHistory(doc, flagged, casesChecked)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	ingestSearchCmd.Flags().IntVar(&ingestRound, "round", 0, "Round number (0 = next round)")
	ingestExternalCmd.Flags().IntVar(&ingestRound, "round", 0, "Round number (0 = next round)")
	ingestExternalCmd.Flags().StringVar(&sourceKind, "source", types.SourceCitationResolution,
		"Producing mechanism: citation_resolution or citing_discovery")
	addHistoryCmd.Flags().IntVar(&casesChecked, "cases-checked", 0, "Total analyzed cases checked")
}

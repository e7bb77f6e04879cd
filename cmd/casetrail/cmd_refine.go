// Package main: refinement decision commands. These are pure reads of the
// session document; their outputs are reproducible from the document alone.
package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casetrail/internal/refine"
)

// =============================================================================
// REFINEMENT DECISION COMMANDS
// =============================================================================

// shouldRefineCmd decides whether to run another research round.
var shouldRefineCmd = &cobra.Command{
	Use:   "should-refine",
	Short: "Decide whether another research round is warranted",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		doc, err := r.Load()
		if err != nil {
			return err
		}

		decision := refine.ShouldRefine(doc, cfg.Refine)
		logger.Info("should-refine",
			zap.String("decision", decision.Decision),
			zap.String("reason", decision.Reason))
		return printJSON(decision)
	},
}

// diminishingReturnsCmd checks whether a round mostly rediscovered known cases.
var diminishingReturnsCmd = &cobra.Command{
	Use:   "check-diminishing-returns <round>",
	Short: "Check whether a round's results overlap mostly with analyzed cases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		round, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		r, err := repo()
		if err != nil {
			return err
		}
		doc, err := r.Load()
		if err != nil {
			return err
		}
		return printJSON(refine.CheckDiminishingReturns(doc, round, cfg.Refine))
	},
}

// topCandidatesCmd ranks unanalyzed cases for the next deep-analysis round.
var topCandidatesCmd = &cobra.Command{
	Use:   "top-candidates <n>",
	Short: "Return the top N unanalyzed candidates for deep analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		r, err := repo()
		if err != nil {
			return err
		}
		doc, err := r.Load()
		if err != nil {
			return err
		}
		return printJSON(refine.TopCandidates(doc, n))
	},
}

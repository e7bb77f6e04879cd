// Package main: quote verification command.
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casetrail/internal/quotes"
	"casetrail/internal/types"
)

var opinionDir string

// runQuotesCmd verifies every analyzed excerpt against the fetched opinion
// texts and persists the outcome under quote_validation.
var runQuotesCmd = &cobra.Command{
	Use:   "run-quote-verification",
	Short: "Verify analyzed excerpts against fetched opinion texts",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		dir := opinionDir
		if dir == "" {
			dir = cfg.Paths.OpinionDir
		}
		runner := quotes.NewRunner(cfg.Quotes, dir)

		var report *quotes.Report
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			report, err = runner.Run(cmd.Context(), doc)
			return err
		}); err != nil {
			return err
		}

		logger.Info("quote verification complete",
			zap.Int("total", report.Summary["total"]),
			zap.Int("verified", report.Summary[quotes.StatusVerified]),
			zap.Int("not_found", report.Summary[quotes.StatusNotFound]))
		return printJSON(report)
	},
}

func init() {
	runQuotesCmd.Flags().StringVar(&opinionDir, "opinion-dir", "", "Directory of opinion_<clusterID>.txt files (default from config)")
}

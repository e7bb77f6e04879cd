// casetrail is the state engine behind a multi-round legal research workflow.
// It accumulates search results and case analyses into one session document,
// deduplicates and scores them, decides whether another round is warranted,
// and verifies that quoted excerpts actually appear in their source opinions.
//
// Every command operates on one session document (--state); mutating commands
// read the full document, apply one change, and write the full document back
// atomically. Results print as JSON on stdout for the orchestrator to log.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"casetrail/internal/config"
	"casetrail/internal/logging"
	"casetrail/internal/store"
)

var (
	// Global flags
	statePath  string
	configPath string
	workspace  string
	verbose    bool

	// Loaded once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casetrail",
	Short: "casetrail - session state engine for multi-round case-law research",
	Long: `casetrail manages the persistent state of an iterative legal research
session: it merges search and analysis batches into a single session document,
tracks unexplored leads, decides whether another research round is warranted,
and verifies quoted excerpts against opinion texts.

Producers (search agents, analyzers, scorers) write batch files; casetrail
ingests them strictly sequentially, one batch per invocation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath(ws)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := logging.Initialize(ws, &cfg.Logging); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// repo returns the repository for the --state flag.
func repo() (*store.Repository, error) {
	if statePath == "" {
		return nil, fmt.Errorf("--state is required")
	}
	return store.NewRepository(statePath), nil
}

// printJSON writes a command result to stdout for the caller to log verbatim.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Path to the session document (state JSON file)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .casetrail/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(logCmd)

	rootCmd.AddCommand(ingestSearchCmd)
	rootCmd.AddCommand(ingestExternalCmd)
	rootCmd.AddCommand(mergeScoresCmd)
	rootCmd.AddCommand(addAnalysisCmd)
	rootCmd.AddCommand(validateScoresCmd)
	rootCmd.AddCommand(addHistoryCmd)

	rootCmd.AddCommand(getLeadsCmd)
	rootCmd.AddCommand(addLeadsCmd)
	rootCmd.AddCommand(markExploredCmd)

	rootCmd.AddCommand(shouldRefineCmd)
	rootCmd.AddCommand(diminishingReturnsCmd)
	rootCmd.AddCommand(topCandidatesCmd)

	rootCmd.AddCommand(runQuotesCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package main: batch drop-directory watcher. Producers run in parallel and
// write finished batches into a drop directory; the watcher ingests each file
// on a single goroutine, so the session document still has exactly one writer.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casetrail/internal/leads"
	"casetrail/internal/logging"
	"casetrail/internal/merge"
	"casetrail/internal/store"
	"casetrail/internal/types"
)

var watchDir string

// settleDelay gives producers time to finish writing before a file is read.
const settleDelay = 200 * time.Millisecond

// watchCmd ingests batch files as they appear in the drop directory.
// File naming selects the operation:
//
//	search-*.json    ingest-search
//	external-*.json  ingest-external (source kind from --source)
//	scores-*.json    merge-scores
//	analysis-*.json  add-analysis
//	leads-*.json     add-leads
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop directory and ingest batch files as they appear",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		if err := watcher.Add(watchDir); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("watching for batch files", zap.String("dir", watchDir))
		processed := make(map[string]bool)

		for {
			select {
			case <-ctx.Done():
				logger.Info("watcher stopped")
				return nil
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("watch error", zap.Error(err))
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				name := filepath.Base(event.Name)
				if processed[name] || !strings.HasSuffix(name, ".json") {
					continue
				}
				processed[name] = true

				time.Sleep(settleDelay)
				if err := ingestDropped(ctx, r, event.Name); err != nil {
					logger.Error("failed to ingest batch file",
						zap.String("file", name), zap.Error(err))
					logging.Get(logging.CategoryWatch).Error("ingest %s: %v", name, err)
					continue
				}
				logger.Info("batch file ingested", zap.String("file", name))
			}
		}
	},
}

// ingestDropped routes one dropped file to the matching engine operation.
// Unknown prefixes are left in place untouched.
func ingestDropped(ctx context.Context, r *store.Repository, path string) error {
	name := filepath.Base(path)

	switch {
	case strings.HasPrefix(name, "search-"):
		batch, err := merge.LoadSearchBatch(path)
		if err != nil {
			return err
		}
		_, err = r.Update(func(doc *types.SessionDocument) error {
			_, err := merge.IngestSearchBatch(doc, batch, ingestRound)
			return err
		})
		return err

	case strings.HasPrefix(name, "external-"):
		batch, err := merge.LoadExternalBatch(path)
		if err != nil {
			return err
		}
		_, err = r.Update(func(doc *types.SessionDocument) error {
			_, err := merge.IngestExternalBatch(doc, batch, sourceKind, ingestRound)
			return err
		})
		return err

	case strings.HasPrefix(name, "scores-"):
		scores, err := merge.LoadScoreMap(path)
		if err != nil {
			return err
		}
		_, err = r.Update(func(doc *types.SessionDocument) error {
			merge.MergeScores(doc, scores)
			return nil
		})
		return err

	case strings.HasPrefix(name, "analysis-"):
		analyses, err := merge.LoadAnalyses(path)
		if err != nil {
			return err
		}
		_, err = r.Update(func(doc *types.SessionDocument) error {
			for _, a := range analyses {
				if _, err := merge.AddAnalysis(doc, a); err != nil {
					return err
				}
			}
			return nil
		})
		return err

	case strings.HasPrefix(name, "leads-"):
		incoming, err := merge.LoadLeads(path)
		if err != nil {
			return err
		}
		_, err = r.Update(func(doc *types.SessionDocument) error {
			leads.Add(doc, incoming)
			return nil
		})
		return err
	}

	logging.Get(logging.CategoryWatch).Debug("ignoring unrecognized file %s", name)
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "Drop directory to watch for batch files")
	watchCmd.Flags().IntVar(&ingestRound, "round", 0, "Round number for ingested batches (0 = next round)")
	watchCmd.Flags().StringVar(&sourceKind, "source", types.SourceCitationResolution,
		"Source kind for external-*.json batches")
	_ = watchCmd.MarkFlagRequired("dir")
}

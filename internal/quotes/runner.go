package quotes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"casetrail/internal/config"
	"casetrail/internal/logging"
	"casetrail/internal/types"
)

// MissingOpinion explains why a case's source text was unavailable.
type MissingOpinion struct {
	ClusterID int64  `json:"cluster_id"`
	Reason    string `json:"reason"`
}

// Report is the structured result of one verification run.
type Report struct {
	Status  string           `json:"status"`
	Summary map[string]int   `json:"summary"`
	PerCase []string         `json:"per_case,omitempty"`
	Missing []MissingOpinion `json:"missing_opinion_files,omitempty"`
}

// Runner verifies every excerpt of every analyzed case against the fetched
// opinion texts. Cases are matched concurrently; the session document is
// still written once, by the caller, after Run returns.
type Runner struct {
	matcher    *Matcher
	cfg        config.QuotesConfig
	opinionDir string
}

// NewRunner creates a runner reading opinion texts from dir.
func NewRunner(cfg config.QuotesConfig, opinionDir string) *Runner {
	return &Runner{matcher: NewMatcher(cfg), cfg: cfg, opinionDir: opinionDir}
}

// OpinionPath returns the expected source text file for a case.
func (r *Runner) OpinionPath(clusterID int64) string {
	return filepath.Join(r.opinionDir, fmt.Sprintf("opinion_%d.txt", clusterID))
}

// loadOpinion reads a case's source text. A missing or implausibly small
// file means the text is unavailable; absence is inconclusive, not an error.
func (r *Runner) loadOpinion(clusterID int64) (string, *MissingOpinion) {
	path := r.OpinionPath(clusterID)
	info, err := os.Stat(path)
	if err != nil {
		return "", &MissingOpinion{ClusterID: clusterID, Reason: "file not found"}
	}
	if info.Size() < r.cfg.MinOpinionBytes {
		return "", &MissingOpinion{ClusterID: clusterID, Reason: fmt.Sprintf("too small (%d bytes)", info.Size())}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &MissingOpinion{ClusterID: clusterID, Reason: err.Error()}
	}
	return string(data), nil
}

func excerptPreview(text string) string {
	if len(text) > 80 {
		return text[:80]
	}
	return text
}

// verifyCase matches every excerpt of one analyzed case.
func (r *Runner) verifyCase(a *types.AnalyzedCase) ([]types.QuoteResult, *MissingOpinion) {
	results := make([]types.QuoteResult, 0, len(a.Excerpts))

	text, missing := r.loadOpinion(a.ClusterID)
	if missing != nil {
		for i, ex := range a.Excerpts {
			results = append(results, types.QuoteResult{
				ClusterID:      a.ClusterID,
				CaseName:       a.CaseName,
				ExcerptIndex:   i,
				ExcerptPreview: excerptPreview(ex.Text),
				Status:         StatusSkipped,
				MatchTier:      TierNone,
			})
		}
		return results, missing
	}

	src := r.matcher.PrepareSource(text)
	for i, ex := range a.Excerpts {
		out := r.matcher.Match(src, ex.Text)
		results = append(results, types.QuoteResult{
			ClusterID:      a.ClusterID,
			CaseName:       a.CaseName,
			ExcerptIndex:   i,
			ExcerptPreview: excerptPreview(ex.Text),
			Status:         out.Status,
			MatchTier:      out.Tier,
			Similarity:     out.Similarity,
			MatchStart:     out.Start,
			MatchEnd:       out.End,
			MatchPreview:   out.Preview,
		})
	}
	return results, nil
}

// Run verifies all analyzed cases with excerpts and stores the outcome under
// the document's quote_validation field. The per-case work fans out across at
// most cfg.Parallelism goroutines; results are merged deterministically in
// analyzed-case order.
func (r *Runner) Run(ctx context.Context, doc *types.SessionDocument) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryQuotes, "run")
	defer timer.Stop()

	var targets []*types.AnalyzedCase
	for i := range doc.Analyzed {
		if len(doc.Analyzed[i].Excerpts) > 0 {
			targets = append(targets, &doc.Analyzed[i])
		}
	}
	if len(targets) == 0 {
		return &Report{Status: "no_excerpts", Summary: map[string]int{}}, nil
	}

	perCase := make([][]types.QuoteResult, len(targets))
	missing := make([]*MissingOpinion, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for i, a := range targets {
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perCase[i], missing[i] = r.verifyCase(a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Status: "complete",
		Summary: map[string]int{
			"total": 0, StatusVerified: 0, StatusLikely: 0, StatusPossible: 0,
			StatusNotFound: 0, StatusNotFoundTruncated: 0, StatusSkipped: 0,
		},
	}
	var all []types.QuoteResult
	for i, results := range perCase {
		counts := map[string]int{}
		for _, res := range results {
			all = append(all, res)
			report.Summary["total"]++
			report.Summary[res.Status]++
			counts[res.Status]++
		}
		line := fmt.Sprintf("%s: %d excerpts", targets[i].CaseName, len(results))
		if missing[i] != nil {
			line += fmt.Sprintf(" - all skipped (%s)", missing[i].Reason)
			report.Missing = append(report.Missing, *missing[i])
		} else {
			line += fmt.Sprintf(" - %d verified, %d likely, %d possible, %d not found",
				counts[StatusVerified], counts[StatusLikely], counts[StatusPossible],
				counts[StatusNotFound]+counts[StatusNotFoundTruncated])
		}
		report.PerCase = append(report.PerCase, line)
	}

	doc.QuoteValidation = &types.QuoteValidation{
		ValidatedAt: time.Now(),
		Summary:     report.Summary,
		Results:     all,
	}

	logging.Get(logging.CategoryQuotes).Info("verified %d excerpts across %d cases", report.Summary["total"], len(targets))
	return report, nil
}

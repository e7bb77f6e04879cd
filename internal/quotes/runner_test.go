package quotes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"casetrail/internal/config"
	"casetrail/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeOpinion pads the text past the plausibility floor so it is not
// mistaken for an error page.
func writeOpinion(t *testing.T, dir string, clusterID int64, text string) {
	t.Helper()
	padding := strings.Repeat("\nThe remainder of the opinion discusses procedural history. ", 30)
	path := filepath.Join(dir, fmt.Sprintf("opinion_%d.txt", clusterID))
	require.NoError(t, os.WriteFile(path, []byte(text+padding), 0644))
}

func TestRunnerRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig().Quotes
	writeOpinion(t, dir, 100, opinionText)

	doc := &types.SessionDocument{
		Analyzed: []types.AnalyzedCase{
			{
				ClusterID: 100,
				CaseName:  "Garner",
				Excerpts: []types.Excerpt{
					{Text: "probable cause to believe that the suspect poses a threat"},
					{Text: "the moon is made of green cheese and vermont cheddar"},
					{Text: "   "},
				},
			},
			{ClusterID: 200, CaseName: "Missing", Excerpts: []types.Excerpt{{Text: "anything"}}},
			{ClusterID: 300, CaseName: "NoExcerpts"},
		},
	}

	r := NewRunner(cfg, dir)
	report, err := r.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "complete", report.Status)
	assert.Equal(t, 4, report.Summary["total"])
	assert.Equal(t, 1, report.Summary[StatusVerified])
	assert.Equal(t, 1, report.Summary[StatusNotFound])
	// The blank excerpt plus the whole missing-opinion case.
	assert.Equal(t, 2, report.Summary[StatusSkipped])

	require.Len(t, report.Missing, 1)
	assert.Equal(t, int64(200), report.Missing[0].ClusterID)
	assert.Equal(t, "file not found", report.Missing[0].Reason)

	// Only cases with excerpts are reported on.
	assert.Len(t, report.PerCase, 2)

	require.NotNil(t, doc.QuoteValidation)
	assert.Len(t, doc.QuoteValidation.Results, 4)
	assert.False(t, doc.QuoteValidation.ValidatedAt.IsZero())
}

func TestRunnerMissingAndSmallOpinions(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig().Quotes
	require.NoError(t, os.WriteFile(filepath.Join(dir, "opinion_7.txt"), []byte("404 not found"), 0644))

	doc := &types.SessionDocument{
		Analyzed: []types.AnalyzedCase{
			{ClusterID: 7, CaseName: "Stub", Excerpts: []types.Excerpt{{Text: "some quote"}}},
		},
	}

	report, err := NewRunner(cfg, dir).Run(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, report.Missing, 1)
	assert.Contains(t, report.Missing[0].Reason, "too small")
	assert.Equal(t, 1, report.Summary[StatusSkipped])
	require.Len(t, doc.QuoteValidation.Results, 1)
	assert.Equal(t, StatusSkipped, doc.QuoteValidation.Results[0].Status)
}

func TestRunnerNoExcerpts(t *testing.T) {
	doc := &types.SessionDocument{
		Analyzed: []types.AnalyzedCase{{ClusterID: 1, CaseName: "Bare"}},
	}
	report, err := NewRunner(config.DefaultConfig().Quotes, t.TempDir()).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "no_excerpts", report.Status)
	assert.Nil(t, doc.QuoteValidation)
}

func TestOpinionPath(t *testing.T) {
	r := NewRunner(config.DefaultConfig().Quotes, "/tmp/opinions")
	assert.Equal(t, filepath.Join("/tmp/opinions", "opinion_42.txt"), r.OpinionPath(42))
}

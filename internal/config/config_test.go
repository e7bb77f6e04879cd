package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "casetrail", cfg.Name)
	assert.Equal(t, 4, cfg.Refine.HighRelevanceThreshold)
	assert.Equal(t, 3, cfg.Refine.MinHighRelevance)
	assert.Equal(t, 3, cfg.Refine.LeadThreshold)
	assert.InDelta(t, 0.60, cfg.Refine.OverlapThreshold, 1e-9)

	assert.Equal(t, 2, cfg.Quotes.TokenEditBudget)
	assert.InDelta(t, 0.85, cfg.Quotes.PossibleThreshold, 1e-9)
	assert.InDelta(t, 0.92, cfg.Quotes.LikelyThreshold, 1e-9)
	assert.Equal(t, 49500, cfg.Quotes.TruncationLimit)
	assert.EqualValues(t, 1000, cfg.Quotes.MinOpinionBytes)
	assert.Equal(t, 4, cfg.Quotes.Parallelism)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Refine, cfg.Refine)
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := DefaultConfigPath(t.TempDir())

	cfg := DefaultConfig()
	cfg.Refine.MinHighRelevance = 5
	cfg.Quotes.Parallelism = 8
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Refine.MinHighRelevance)
	assert.Equal(t, 8, loaded.Quotes.Parallelism)
	assert.True(t, loaded.Logging.DebugMode)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refine:\n  min_high_relevance: 2\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Refine.MinHighRelevance)
	// Everything the file does not set keeps its default.
	assert.Equal(t, 4, cfg.Refine.HighRelevanceThreshold)
	assert.InDelta(t, 0.92, cfg.Quotes.LikelyThreshold, 1e-9)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refine: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CASETRAIL_OPINION_DIR", "/srv/opinions")
	t.Setenv("CASETRAIL_SESSION_LOG", "/var/log/casetrail.jsonl")
	t.Setenv("CASETRAIL_LOG_LEVEL", "debug")
	t.Setenv("CASETRAIL_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/opinions", cfg.Paths.OpinionDir)
	assert.Equal(t, "/var/log/casetrail.jsonl", cfg.Paths.SessionLog)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestIsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{DebugMode: true, Categories: map[string]bool{"merge": true, "quotes": false}}
	assert.True(t, lc.IsCategoryEnabled("merge"))
	assert.False(t, lc.IsCategoryEnabled("quotes"))
	// Unlisted categories follow the master toggle.
	assert.True(t, lc.IsCategoryEnabled("refine"))

	off := LoggingConfig{DebugMode: false}
	assert.False(t, off.IsCategoryEnabled("merge"))
}

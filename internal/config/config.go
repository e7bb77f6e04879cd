// Package config holds all casetrail configuration, including every tunable
// policy constant of the refinement and quote-verification engines. Constants
// live here, not hard-coded, so tests can calibrate them against representative
// excerpt/source pairs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all casetrail configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Refinement decision policy
	Refine RefineConfig `yaml:"refine"`

	// Quote verification matcher
	Quotes QuotesConfig `yaml:"quotes"`

	// Paths for session artifacts
	Paths PathsConfig `yaml:"paths"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RefineConfig configures the refinement decision engine.
type RefineConfig struct {
	// Ranking at or above this counts as high-relevance (default: 4).
	HighRelevanceThreshold int `yaml:"high_relevance_threshold"`

	// Refine while fewer than this many high-relevance analyses exist (default: 3).
	MinHighRelevance int `yaml:"min_high_relevance"`

	// Refine while more than this many unexplored leads remain (default: 3).
	LeadThreshold int `yaml:"lead_threshold"`

	// Overlap ratio at or above which a round is diminishing returns (default: 0.60).
	OverlapThreshold float64 `yaml:"overlap_threshold"`

	// For fact/mixed queries, refine while fewer than MinHighRelevance analyses
	// reach this ranking (default: 3).
	FactualRelevanceThreshold int `yaml:"factual_relevance_threshold"`
}

// QuotesConfig configures the three-tier quote matcher.
type QuotesConfig struct {
	// Tier 2: token-level insertions/deletions tolerated per segment (default: 2).
	TokenEditBudget int `yaml:"token_edit_budget"`

	// Tier 3: best-window similarity at or above this is a possible_match (default: 0.85).
	PossibleThreshold float64 `yaml:"possible_threshold"`

	// Tier 3: similarity at or above this is reported likely (default: 0.92).
	LikelyThreshold float64 `yaml:"likely_threshold"`

	// Tier 3: candidate window sizes span [WindowLow, WindowHigh] x excerpt tokens.
	WindowLow  float64 `yaml:"window_low"`  // default: 0.8
	WindowHigh float64 `yaml:"window_high"` // default: 1.2

	// Source texts at or above this many characters are treated as truncated,
	// so a miss is inconclusive rather than evidence of fabrication (default: 49500).
	TruncationLimit int `yaml:"truncation_limit"`

	// Opinion files below this many bytes are treated as missing (default: 1000).
	MinOpinionBytes int64 `yaml:"min_opinion_bytes"`

	// Cases verified concurrently (default: 4). The document write stays sequential.
	Parallelism int `yaml:"parallelism"`
}

// PathsConfig configures where session artifacts live.
type PathsConfig struct {
	// Directory holding fetched opinion texts, opinion_<clusterID>.txt.
	OpinionDir string `yaml:"opinion_dir"`

	// JSONL file session records are appended to at finalize.
	SessionLog string `yaml:"session_log"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "casetrail",
		Version: "1.0.0",

		Refine: RefineConfig{
			HighRelevanceThreshold:    4,
			MinHighRelevance:          3,
			LeadThreshold:             3,
			OverlapThreshold:          0.60,
			FactualRelevanceThreshold: 3,
		},

		Quotes: QuotesConfig{
			TokenEditBudget:   2,
			PossibleThreshold: 0.85,
			LikelyThreshold:   0.92,
			WindowLow:         0.8,
			WindowHigh:        1.2,
			TruncationLimit:   49500,
			MinOpinionBytes:   1000,
			Parallelism:       4,
		},

		Paths: PathsConfig{
			OpinionDir: filepath.Join(os.TempDir(), "casetrail-opinions"),
			SessionLog: "sessions.jsonl",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults are returned so every command works in a bare workspace.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the workspace config location.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".casetrail", "config.yaml")
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CASETRAIL_OPINION_DIR"); dir != "" {
		c.Paths.OpinionDir = dir
	}
	if path := os.Getenv("CASETRAIL_SESSION_LOG"); path != "" {
		c.Paths.SessionLog = path
	}
	if lvl := os.Getenv("CASETRAIL_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if os.Getenv("CASETRAIL_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

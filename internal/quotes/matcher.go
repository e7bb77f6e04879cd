package quotes

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"casetrail/internal/config"
)

// Excerpt statuses, in decreasing order of confidence.
const (
	StatusVerified          = "verified"
	StatusLikely            = "likely_match"
	StatusPossible          = "possible_match"
	StatusNotFound          = "not_found"
	StatusNotFoundTruncated = "not_found_truncated"
	StatusSkipped           = "skipped"
)

// Match tiers.
const (
	TierExact = "normalized_exact"
	TierToken = "token_sequence"
	TierFuzzy = "fuzzy"
	TierNone  = "none"
)

const previewLen = 200

// Outcome is the terminal result for one excerpt against one source.
type Outcome struct {
	Status     string
	Tier       string
	Similarity float64
	// Token span in the source for tiers 2-3, for downstream highlighting.
	Start, End int
	Preview    string
}

// Source is a prepared source text: normalized once, tokenized once, shared
// across all excerpts attributed to it.
type Source struct {
	Norm      string
	Tokens    []string
	Truncated bool

	lower string // case-folded Norm, tier 1 compares against this
}

// Matcher runs the three-tier pipeline with calibrated thresholds.
type Matcher struct {
	cfg config.QuotesConfig
}

// NewMatcher creates a matcher with the given policy constants.
func NewMatcher(cfg config.QuotesConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// PrepareSource normalizes and tokenizes a source text once.
func (m *Matcher) PrepareSource(text string) *Source {
	n := Normalize(text)
	return &Source{
		Norm:      n,
		Tokens:    Tokenize(text),
		Truncated: len(text) >= m.cfg.TruncationLimit,
		lower:     strings.ToLower(n),
	}
}

// Match runs the escalating pipeline on a single excerpt: each tier either
// produces an outcome or defers to the next.
func (m *Matcher) Match(src *Source, excerpt string) Outcome {
	if strings.TrimSpace(excerpt) == "" {
		return Outcome{Status: StatusSkipped, Tier: TierNone}
	}

	if out := m.tierExact(src, excerpt); out != nil {
		return *out
	}
	if out := m.tierTokenSequence(src, excerpt); out != nil {
		return *out
	}
	return m.tierFuzzy(src, excerpt)
}

// tierExact tests literal substring containment after normalization.
func (m *Matcher) tierExact(src *Source, excerpt string) *Outcome {
	needle := strings.ToLower(Normalize(StripBrackets(excerpt)))
	if needle == "" || !strings.Contains(src.lower, needle) {
		return nil
	}
	return &Outcome{Status: StatusVerified, Tier: TierExact, Similarity: 1.0}
}

// tierTokenSequence searches for the excerpt's token sequence inside the
// source token stream, segment by segment across ellipses, tolerating a
// bounded number of token insertions/deletions per segment.
func (m *Matcher) tierTokenSequence(src *Source, excerpt string) *Outcome {
	segments := SplitEllipsisSegments(StripBrackets(excerpt))
	if len(segments) == 0 {
		return nil
	}

	matchStart, matchEnd := -1, 0
	pos := 0
	for _, seg := range segments {
		tokens := Tokenize(seg)
		if len(tokens) == 0 {
			continue
		}
		start, end, ok := findTokenSequence(src.Tokens, pos, tokens, m.cfg.TokenEditBudget)
		if !ok {
			return nil
		}
		if matchStart < 0 {
			matchStart = start
		}
		matchEnd = end
		pos = end
	}
	if matchStart < 0 {
		return nil
	}

	return &Outcome{
		Status:     StatusLikely,
		Tier:       TierToken,
		Similarity: 1.0,
		Start:      matchStart,
		End:        matchEnd,
		Preview:    tokenPreview(src.Tokens[matchStart:matchEnd]),
	}
}

// findTokenSequence locates needle as a near-contiguous subsequence of
// haystack[from:], allowing up to budget token insertions or deletions.
// Returns the matched token span.
func findTokenSequence(haystack []string, from int, needle []string, budget int) (start, end int, ok bool) {
	for i := from; i <= len(haystack)-1; i++ {
		// Anchor each attempt on the first needle token; interior noise is
		// what the edit budget is for.
		if haystack[i] != needle[0] {
			continue
		}
		if e, matched := seqMatch(haystack, i+1, needle, 1, budget); matched {
			return i, e, true
		}
	}
	return 0, 0, false
}

// seqMatch advances through haystack and needle together, spending budget on
// mismatches: skipping a needle token models a deletion, skipping a haystack
// token an insertion.
func seqMatch(haystack []string, hi int, needle []string, ni int, budget int) (int, bool) {
	for {
		if ni == len(needle) {
			return hi, true
		}
		if hi == len(haystack) {
			if len(needle)-ni <= budget {
				return hi, true
			}
			return 0, false
		}
		if haystack[hi] == needle[ni] {
			hi++
			ni++
			continue
		}
		if budget == 0 {
			return 0, false
		}
		if end, ok := seqMatch(haystack, hi, needle, ni+1, budget-1); ok {
			return end, true
		}
		if end, ok := seqMatch(haystack, hi+1, needle, ni, budget-1); ok {
			return end, true
		}
		return 0, false
	}
}

// tierFuzzy slides candidate windows roughly the excerpt's length across the
// source tokens, prunes them with the cheap QuickRatio bound, and scores the
// survivors with the full similarity ratio.
func (m *Matcher) tierFuzzy(src *Source, excerpt string) Outcome {
	excerptTokens := Tokenize(StripBrackets(excerpt))
	miss := Outcome{Status: StatusNotFound, Tier: TierNone}
	if src.Truncated {
		miss.Status = StatusNotFoundTruncated
	}
	if len(excerptTokens) == 0 || len(src.Tokens) == 0 {
		return miss
	}

	n := len(excerptTokens)
	minWindow := int(float64(n) * m.cfg.WindowLow)
	if minWindow < 5 {
		minWindow = 5
	}
	maxWindow := int(float64(n)*m.cfg.WindowHigh) + 1
	if maxWindow > len(src.Tokens) {
		maxWindow = len(src.Tokens)
	}

	// Similarity is character-level over the joined token strings; the
	// thresholds are calibrated for that, not for token-level ratios.
	needle := splitChars(strings.Join(excerptTokens, " "))

	bestRatio := 0.0
	bestStart, bestEnd := 0, 0
	for size := minWindow; size <= maxWindow; size++ {
		for i := 0; i+size <= len(src.Tokens); i++ {
			window := splitChars(strings.Join(src.Tokens[i:i+size], " "))
			sm := difflib.NewMatcher(needle, window)
			if sm.QuickRatio() < bestRatio {
				continue
			}
			if ratio := sm.Ratio(); ratio > bestRatio {
				bestRatio = ratio
				bestStart, bestEnd = i, i+size
				if bestRatio >= 0.98 {
					size = maxWindow
					break
				}
			}
		}
	}

	out := Outcome{
		Tier:       TierFuzzy,
		Similarity: bestRatio,
		Start:      bestStart,
		End:        bestEnd,
		Preview:    tokenPreview(src.Tokens[bestStart:bestEnd]),
	}
	switch {
	case bestRatio >= m.cfg.LikelyThreshold:
		out.Status = StatusLikely
	case bestRatio >= m.cfg.PossibleThreshold:
		out.Status = StatusPossible
	default:
		out.Status = miss.Status
		out.Tier = TierNone
	}
	return out
}

// splitChars breaks a joined token string into single-character elements for
// the sequence matcher. Tokens are ASCII by construction.
func splitChars(s string) []string {
	out := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[i : i+1]
	}
	return out
}

func tokenPreview(tokens []string) string {
	s := strings.Join(tokens, " ")
	if len(s) > previewLen {
		s = s[:previewLen]
	}
	return s
}

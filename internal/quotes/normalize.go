// Package quotes verifies that excerpts attributed to a source text actually
// appear in it. Matching is an escalating three-tier pipeline: normalized
// exact substring, token-sequence with a bounded edit budget, then a fuzzy
// sliding window. Tier 1 is near-free and catches honestly-quoted excerpts;
// the later tiers exist to avoid false fabrication flags caused by OCR and
// whitespace noise while still catching excerpts with no textual basis.
package quotes

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	wsRe       = regexp.MustCompile(`\s+`)
	tokenRe    = regexp.MustCompile(`[a-z0-9]+`)
	bracketRe  = regexp.MustCompile(`\[[^\]]*\]`)
	ellipsisRe = regexp.MustCompile(`\[\s*\.\.\.\s*\]|\.{3,}`)
)

// charReplacer unifies quote characters, dashes and ligatures and strips the
// invisible artifacts (soft hyphens, zero-width characters, BOM) that OCR and
// PDF extraction leave behind.
var charReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", // curly single quotes
	"“", `"`, "”", `"`, // curly double quotes
	"—", "-", "–", "-", // em/en dashes
	"ﬁ", "fi", "ﬂ", "fl", // ligatures
	" ", " ", // non-breaking space
	"­", "", // soft hyphen
	"​", "", "‌", "", // zero-width space/non-joiner
	"\uFEFF", "", // BOM
)

// Normalize prepares text for comparison: NFC unicode normalization, quote
// and dash unification, artifact stripping, whitespace collapse.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = charReplacer.Replace(text)
	text = wsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Tokenize extracts lowercase alphanumeric word tokens.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// StripBrackets removes bracketed editorial insertions like [A], [the],
// [emphasis added].
func StripBrackets(text string) string {
	return bracketRe.ReplaceAllString(text, " ")
}

// SplitEllipsisSegments splits an excerpt at ellipsis boundaries ("..." or
// "[...]") into the fragments that must each appear, in order, in the source.
func SplitEllipsisSegments(text string) []string {
	var segments []string
	for _, s := range ellipsisRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// =============================================================================
// LOOSE-INPUT EXTRACTION UTILITIES
// =============================================================================
//
// External producers emit loosely-shaped JSON: cluster ids arrive as numbers
// or strings, excerpts as plain strings or {"text": ...} objects, under either
// the "excerpts" or the legacy "key_excerpts" field. These helpers coerce that
// stream into the typed model before it reaches core logic; anything that
// cannot be coerced is reported to the skip-and-count path by the caller.

// ExtractInt64 coerces a decoded JSON value to int64.
// Handles float64 (the default JSON number type), int, int64, json.Number and
// numeric strings. Returns false for anything else.
func ExtractInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// ExtractRelevance coerces a decoded JSON value to a relevance pointer.
// nil, empty string and "n/a" mean "absent" (nil pointer); numeric values are
// truncated to int but NOT clamped here - clamping happens on write so that
// corrections can be reported.
func ExtractRelevance(v interface{}) (*int, bool) {
	switch n := v.(type) {
	case nil:
		return nil, true
	case float64:
		r := int(n)
		return &r, true
	case int:
		r := n
		return &r, true
	case int64:
		r := int(n)
		return &r, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		r := int(i)
		return &r, true
	case string:
		s := strings.TrimSpace(strings.ToLower(n))
		if s == "" || s == "n/a" || s == "none" || s == "null" {
			return nil, true
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, false
		}
		return &i, true
	default:
		return nil, false
	}
}

// UnmarshalJSON accepts an excerpt as either a plain string or an object with
// a "text" key.
func (e *Excerpt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Text = obj.Text
	return nil
}

// analyzedCaseAlias avoids recursing into AnalyzedCase.UnmarshalJSON.
type analyzedCaseAlias AnalyzedCase

// UnmarshalJSON decodes an analyzed case, folding the legacy "key_excerpts"
// field into Excerpts when "excerpts" is absent.
func (a *AnalyzedCase) UnmarshalJSON(data []byte) error {
	var aux struct {
		analyzedCaseAlias
		KeyExcerpts []Excerpt `json:"key_excerpts"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = AnalyzedCase(aux.analyzedCaseAlias)
	if len(a.Excerpts) == 0 && len(aux.KeyExcerpts) > 0 {
		a.Excerpts = aux.KeyExcerpts
	}
	return nil
}

package refine

import (
	"regexp"
	"strconv"

	"casetrail/internal/types"
)

// CandidateResult lists the top-ranked unanalyzed cases for deep analysis.
type CandidateResult struct {
	Candidates      []types.CaseRecord `json:"candidates"`
	TotalUnanalyzed int                `json:"total_unanalyzed"`
	Unscored        int                `json:"unscored_excluded"`
	Returned        int                `json:"returned"`
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// pivotalYear returns the earliest year found in the pivotal case citations,
// or 0 when none is known.
func pivotalYear(doc *types.SessionDocument) int {
	year := 0
	for _, p := range doc.PivotalCases {
		m := yearRe.FindString(p.Name)
		if m == "" {
			continue
		}
		y, _ := strconv.Atoi(m)
		if year == 0 || y < year {
			year = y
		}
	}
	return year
}

// effectiveRelevance is the score used for ranking. A case whose surrounding
// context was confirmed absent during scoring ranks two notches lower; its
// stored score is untouched.
func effectiveRelevance(c *types.CaseRecord) int {
	rel := *c.InitialRelevance
	if c.ContextMatch == "absent" {
		rel -= 2
	}
	return rel
}

func caseYear(dateFiled string) int {
	if len(dateFiled) < 4 {
		return 0
	}
	y, err := strconv.Atoi(dateFiled[:4])
	if err != nil {
		return 0
	}
	return y
}

// candidateKey orders candidates. Higher compares greater. Court diversity is
// dynamic (depends on what was already picked), so it is passed in.
type candidateKey struct {
	relevance   int
	citeCount   int
	courtUnseen bool
	postPivotal bool
	dateFiled   string
	clusterID   int64
}

func (k candidateKey) less(o candidateKey) bool {
	if k.relevance != o.relevance {
		return k.relevance < o.relevance
	}
	if k.citeCount != o.citeCount {
		return k.citeCount < o.citeCount
	}
	if k.courtUnseen != o.courtUnseen {
		return !k.courtUnseen
	}
	if k.postPivotal != o.postPivotal {
		return !k.postPivotal
	}
	if k.dateFiled != o.dateFiled {
		return k.dateFiled < o.dateFiled
	}
	// Lower cluster id wins ties so the ranking is fully deterministic.
	return k.clusterID > o.clusterID
}

// TopCandidates ranks the case records that do not yet have an analyzed-case
// entry: initial relevance first, citation count as tiebreak, then court
// diversity and recency so a run does not pick near-duplicates from one
// court/date cluster. Unscored cases are excluded; scoring is a prerequisite
// for deep analysis.
func TopCandidates(doc *types.SessionDocument, n int) CandidateResult {
	analyzed := doc.AnalyzedIDs()
	pivot := pivotalYear(doc)

	var pool []types.CaseRecord
	unscored := 0
	for _, c := range doc.Cases {
		if analyzed[c.ClusterID] {
			continue
		}
		if !c.Scored() {
			unscored++
			continue
		}
		pool = append(pool, c)
	}

	picked := make([]types.CaseRecord, 0, n)
	used := make(map[int64]bool, n)
	courtSeen := make(map[string]bool)

	for len(picked) < n && len(picked) < len(pool) {
		bestIdx := -1
		var bestKey candidateKey
		for i := range pool {
			c := &pool[i]
			if used[c.ClusterID] {
				continue
			}
			key := candidateKey{
				relevance:   effectiveRelevance(c),
				citeCount:   c.CiteCount,
				courtUnseen: c.Court == "" || !courtSeen[c.Court],
				postPivotal: pivot == 0 || caseYear(c.DateFiled) >= pivot,
				dateFiled:   c.DateFiled,
				clusterID:   c.ClusterID,
			}
			if bestIdx < 0 || bestKey.less(key) {
				bestIdx, bestKey = i, key
			}
		}
		if bestIdx < 0 {
			break
		}
		c := pool[bestIdx]
		used[c.ClusterID] = true
		courtSeen[c.Court] = true
		picked = append(picked, c)
	}

	return CandidateResult{
		Candidates:      picked,
		TotalUnanalyzed: len(pool) + unscored,
		Unscored:        unscored,
		Returned:        len(picked),
	}
}

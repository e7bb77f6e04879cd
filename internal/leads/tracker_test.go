package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrail/internal/types"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Graham v. Connor, 490 U.S. 386 (1989)", "graham v. connor, 490 u.s. 386 (1989)"},
		{"  Graham   v.  Connor  ", "graham v. connor"},
		{"qualified immunity.", "qualified immunity"},
		{"QUALIFIED IMMUNITY;", "qualified immunity"},
		{"   ", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeKey(c.in), "input %q", c.in)
	}
}

func TestExtractFromAnalysis(t *testing.T) {
	doc := &types.SessionDocument{}
	analysis := &types.AnalyzedCase{
		ClusterID: 100,
		CaseName:  "Smith v. Jones",
		FollowUp: &types.FollowUp{
			CasesToExamine: []string{
				"Graham v. Connor, 490 U.S. 386 (1989)",
				"graham V. connor,  490 u.s. 386 (1989)", // same lead, different casing
			},
			NewSearchTerms: []string{"objective reasonableness"},
		},
	}

	added := ExtractFromAnalysis(doc, analysis)
	assert.Equal(t, 2, added)
	require.Len(t, doc.PendingLeads, 2)
	assert.Equal(t, types.LeadCitation, doc.PendingLeads[0].Kind)
	assert.Equal(t, int64(100), doc.PendingLeads[0].SourceClusterID)
	assert.Equal(t, types.LeadTerminology, doc.PendingLeads[1].Kind)

	// Re-extraction of the same record adds nothing.
	assert.Equal(t, 0, ExtractFromAnalysis(doc, analysis))
	assert.Len(t, doc.PendingLeads, 2)
}

func TestAddDefaultsKind(t *testing.T) {
	doc := &types.SessionDocument{}
	added := Add(doc, []types.Lead{
		{Text: "deliberate indifference"},
		{Text: "Monell v. Dept. of Social Services", Kind: types.LeadCitation},
	})
	assert.Equal(t, 2, added)
	assert.Equal(t, types.LeadTerminology, doc.PendingLeads[0].Kind)
	assert.Equal(t, types.LeadCitation, doc.PendingLeads[1].Kind)
}

func TestUnexploredPartitionsAndFilters(t *testing.T) {
	doc := &types.SessionDocument{}
	Add(doc, []types.Lead{
		{Text: "Tennessee v. Garner", Kind: types.LeadCitation},
		{Text: "excessive force"},
		{Text: "fleeing felon rule"},
	})

	citations, terminology := Unexplored(doc)
	assert.Len(t, citations, 1)
	assert.Len(t, terminology, 2)

	marked := MarkExplored(doc, []string{"Excessive Force."})
	assert.Equal(t, 1, marked)

	citations, terminology = Unexplored(doc)
	assert.Len(t, citations, 1)
	require.Len(t, terminology, 1)
	assert.Equal(t, "fleeing felon rule", terminology[0].Key)
	assert.Equal(t, 2, CountUnexplored(doc))
}

func TestMarkExploredIsStickyAndIdempotent(t *testing.T) {
	doc := &types.SessionDocument{}
	Add(doc, []types.Lead{{Text: "excessive force"}})

	assert.Equal(t, 1, MarkExplored(doc, []string{"excessive force"}))
	assert.Equal(t, 0, MarkExplored(doc, []string{"excessive force"}))
	// Unknown keys are recorded too; exploration is a statement about the
	// key, not about pending membership.
	assert.Equal(t, 1, MarkExplored(doc, []string{"never seen"}))
	assert.Len(t, doc.ExploredLeads, 2)

	// Rediscovering an explored lead never re-offers it.
	Add(doc, []types.Lead{{Text: "Excessive   Force"}})
	c, tl := Unexplored(doc)
	assert.Empty(t, c)
	assert.Empty(t, tl)
	assert.Equal(t, 0, CountUnexplored(doc))
}

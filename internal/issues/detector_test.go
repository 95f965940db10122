package issues

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

func detect(t *testing.T, docs ...string) []DetectedIssue {
	t.Helper()
	tax := taxonomy.MustDefault()
	scores := category.NewScorer(tax, category.DefaultConfig()).Score(docs)
	return NewDetector(tax, DefaultConfig()).Detect(scores.Ranked(), docs)
}

func TestDetectLandlordExample(t *testing.T) {
	got := detect(t, "My landlord issued an N4 notice for unpaid rent of $1800 and has not repaired the broken heater.")

	require.Len(t, got, 3)
	// eviction_defense: N4 + notice, illegal_rent_increase: rent + notice,
	// both 2 matches + 1.0 bonus; maintenance_issues: broken only.
	assert.Equal(t, "eviction_defense", got[0].IssueType)
	assert.Equal(t, "illegal_rent_increase", got[1].IssueType)
	assert.Equal(t, "maintenance_issues", got[2].IssueType)

	assert.InDelta(t, 3.0, got[0].Score, 1e-9)
	assert.InDelta(t, 0.3, got[0].Confidence, 1e-9)
	assert.InDelta(t, 1.0, got[2].Score, 1e-9)
	assert.InDelta(t, 0.1, got[2].Confidence, 1e-9)
	assert.Equal(t, "Eviction Defense (LTB Form T5)", got[0].Name)
	assert.Len(t, got[0].ContextSamples, 2)
	for _, s := range got[0].ContextSamples {
		assert.Contains(t, s, "notice")
	}
}

func TestDetectCapsSamplesAndConfidence(t *testing.T) {
	doc := "The landlord refuses to repair the unit. " + strings.Repeat("Please repair it. ", 8)
	got := detect(t, doc)

	require.NotEmpty(t, got)
	var maint *DetectedIssue
	for i := range got {
		if got[i].IssueType == "maintenance_issues" {
			maint = &got[i]
		}
	}
	require.NotNil(t, maint)
	// nine "repair" matches: 9 + 4.5 bonus
	assert.InDelta(t, 13.5, maint.Score, 1e-9)
	assert.Equal(t, 1.0, maint.Confidence)
	assert.Len(t, maint.ContextSamples, 5)
}

func TestDetectOnlyTopCategories(t *testing.T) {
	tax := taxonomy.MustDefault()
	docs := []string{"The police officer made a complaint about my credit report error."}
	ranked := []category.Score{
		{Category: taxonomy.Credit, Raw: 500},
	}
	got := NewDetector(tax, DefaultConfig()).Detect(ranked, docs)
	for _, d := range got {
		assert.Equal(t, taxonomy.Credit, d.Category, "issue %s outside the examined categories", d.IssueType)
	}
	require.NotEmpty(t, got)

	cfg := DefaultConfig()
	cfg.TopCategories = 0
	assert.Empty(t, NewDetector(tax, cfg).Detect(ranked, docs))
}

func TestDetectSkipsZeroScoreCategories(t *testing.T) {
	tax := taxonomy.MustDefault()
	ranked := []category.Score{{Category: taxonomy.LandlordTenant, Raw: 0}}
	got := NewDetector(tax, DefaultConfig()).Detect(ranked, []string{"eviction notice"})
	assert.Empty(t, got)
}

func TestDetectEmptyDocuments(t *testing.T) {
	got := NewDetector(taxonomy.MustDefault(), DefaultConfig()).Detect(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetectDeterministic(t *testing.T) {
	doc := "My employer fired me without cause after I reported workplace harassment by my supervisor."
	first := detect(t, doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, detect(t, doc))
	}
}

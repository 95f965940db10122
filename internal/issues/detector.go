package issues

import (
	"sort"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/taxonomy"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #region config
// Config controls issue detection.
type Config struct {
	TopCategories   int     // categories examined, highest scoring first
	ContextRunes    int     // runes captured on each side of a match
	MaxSamples      int     // context samples kept per issue
	BonusMinMatches int     // matches needed before the corroboration bonus applies
	BonusPerMatch   float64 // bonus added per match once it applies
	ConfidenceScale float64 // totalScore at which confidence saturates
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		TopCategories:   3,
		ContextRunes:    50,
		MaxSamples:      5,
		BonusMinMatches: 2,
		BonusPerMatch:   0.5,
		ConfidenceScale: 10,
	}
}

// #endregion config

// #region types
// DetectedIssue is a sub-issue found in the case documents.
type DetectedIssue struct {
	Category       taxonomy.Category `json:"category"`
	IssueType      string            `json:"issue_type"`
	Name           string            `json:"name"`
	Score          float64           `json:"score"`
	Confidence     float64           `json:"confidence"`
	ContextSamples []string          `json:"context_samples"`
}

// #endregion types

// #region detector
// Detector finds issue types within the top-scoring categories.
type Detector struct {
	tax    *taxonomy.Taxonomy
	config Config
}

// NewDetector creates a detector over tax.
func NewDetector(tax *taxonomy.Taxonomy, config Config) *Detector {
	return &Detector{tax: tax, config: config}
}

// Detect scans docs for the required keywords of every issue type in the
// top categories of ranked. Each match counts once and contributes a
// context sample; two or more matches earn a bonus of BonusPerMatch per
// match. Results are sorted by score, highest first, with ties in taxonomy
// order.
func (d *Detector) Detect(ranked []category.Score, docs []string) []DetectedIssue {
	found := []DetectedIssue{}
	if len(docs) == 0 {
		return found
	}

	examined := 0
	for _, sc := range ranked {
		if examined == d.config.TopCategories {
			break
		}
		if sc.Raw <= 0 {
			break
		}
		examined++

		spec, ok := d.tax.Spec(sc.Category)
		if !ok {
			continue
		}
		for _, it := range spec.IssueTypes {
			if issue, ok := d.detectOne(spec.Category, it, docs); ok {
				found = append(found, issue)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Score > found[j].Score
	})
	return found
}

func (d *Detector) detectOne(cat taxonomy.Category, it taxonomy.IssueType, docs []string) (DetectedIssue, bool) {
	matches := 0
	samples := []string{}
	for _, m := range it.Matchers() {
		for _, doc := range docs {
			for _, loc := range m.FindAll(doc) {
				matches++
				if len(samples) < d.config.MaxSamples {
					samples = append(samples, textnorm.Window(doc, loc[0], loc[1], d.config.ContextRunes))
				}
			}
		}
	}
	if matches == 0 {
		return DetectedIssue{}, false
	}

	total := float64(matches)
	if matches >= d.config.BonusMinMatches {
		total += d.config.BonusPerMatch * float64(matches)
	}
	confidence := 1.0
	if d.config.ConfidenceScale > 0 {
		confidence = min(1, total/d.config.ConfidenceScale)
	}
	return DetectedIssue{
		Category:       cat,
		IssueType:      it.ID,
		Name:           it.Name,
		Score:          total,
		Confidence:     confidence,
		ContextSamples: samples,
	}, true
}

// #endregion detector

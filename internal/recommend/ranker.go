package recommend

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/smartdispute/case-engine/internal/issues"
	"github.com/smartdispute/case-engine/internal/merit"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region weights
// Weights are the ranking term weights. Each term is in [0,1] before
// weighting.
type Weights struct {
	Category     float64
	Jurisdiction float64
	Urgency      float64
	SuccessRate  float64
	LegalRefs    float64

	// PartialCategory is the category term for a related or overlapping
	// category; an exact match scores 1.
	PartialCategory float64
	// LowMerit is the merit below which rationales carry an evidence note.
	LowMerit float64
}

// DefaultWeights returns the calibrated defaults.
func DefaultWeights() Weights {
	return Weights{
		Category:        0.40,
		Jurisdiction:    0.20,
		Urgency:         0.15,
		SuccessRate:     0.15,
		LegalRefs:       0.10,
		PartialCategory: 0.20,
		LowMerit:        0.40,
	}
}

// #endregion weights

// #region types
// Provenance records why a candidate was proposed. It only affects the
// rationale.
type Provenance string

const (
	ProvenanceAI       Provenance = "ai_recommended"
	ProvenanceRule     Provenance = "rule_matched"
	ProvenanceFallback Provenance = "fallback"
)

// Candidate is one ranked remedy. ContextSamples are the excerpts of the
// most confident detected issue backing it, if any.
type Candidate struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Category       taxonomy.Category `json:"category"`
	Score          float64           `json:"score"`
	Rationale      string            `json:"rationale"`
	Provenance     Provenance        `json:"provenance"`
	ContextSamples []string          `json:"context_samples,omitempty"`
}

// Case is what the ranker knows about the case itself.
type Case struct {
	Category     taxonomy.Category // may be empty
	Jurisdiction string
	Urgency      taxonomy.Urgency
}

// #endregion types

// #region ranker
// Ranker scores remedies from the taxonomy catalogue.
type Ranker struct {
	tax     *taxonomy.Taxonomy
	weights Weights
}

// NewRanker creates a ranker over the catalogue in tax.
func NewRanker(tax *taxonomy.Taxonomy, weights Weights) *Ranker {
	return &Ranker{tax: tax, weights: weights}
}

// CaseUrgency is the highest urgency declared by a detected issue type,
// or medium when nothing was detected.
func (r *Ranker) CaseUrgency(detected []issues.DetectedIssue) taxonomy.Urgency {
	best := taxonomy.Urgency("")
	for _, d := range detected {
		it, _, ok := r.tax.IssueType(d.IssueType)
		if !ok {
			continue
		}
		if it.Urgency.Rank() > best.Rank() {
			best = it.Urgency
		}
	}
	if best == "" {
		return taxonomy.UrgencyMedium
	}
	return best
}

// Rank proposes remedies that match the case category, are backed by a
// detected issue, or were suggested by enrichment. Candidates are sorted
// by score, highest first, ties in catalogue order.
func (r *Ranker) Rank(c Case, m merit.Result, detected []issues.DetectedIssue, suggested []string) []Candidate {
	backing := make(map[string]issues.DetectedIssue, len(detected))
	topics := make(map[string]bool, 2*len(detected))
	for _, d := range detected {
		if b, ok := backing[d.IssueType]; !ok || d.Confidence > b.Confidence {
			backing[d.IssueType] = d
		}
		topics[d.IssueType] = true
		topics[string(d.Category)] = true
	}
	ai := make(map[string]bool, len(suggested))
	for _, id := range suggested {
		ai[id] = true
	}

	out := []Candidate{}
	for _, rem := range r.tax.Remedies() {
		catTerm := r.categoryTerm(c.Category, rem.Category)

		var best *issues.DetectedIssue
		for _, p := range rem.Preconditions {
			if d, ok := backing[p]; ok && (best == nil || d.Confidence > best.Confidence) {
				best = &d
			}
		}
		backed := best != nil
		conf := 0.0
		var samples []string
		if backed {
			conf = best.Confidence
			samples = slices.Clone(best.ContextSamples)
		}
		if catTerm == 0 && !backed && !ai[rem.ID] {
			continue
		}

		score := r.weights.Category*catTerm +
			r.weights.Jurisdiction*boolTerm(rem.CoversJurisdiction(c.Jurisdiction)) +
			r.weights.Urgency*boolTerm(c.Urgency != "" && rem.Urgency == c.Urgency) +
			r.weights.SuccessRate*clamp01(rem.BaseSuccessRate) +
			r.weights.LegalRefs*overlap(rem.LegalRefs, topics)

		prov := ProvenanceFallback
		switch {
		case ai[rem.ID]:
			prov = ProvenanceAI
		case backed:
			prov = ProvenanceRule
		}

		out = append(out, Candidate{
			ID:             rem.ID,
			Name:           rem.Name,
			Category:       rem.Category,
			Score:          clamp01(score),
			Rationale:      r.rationale(prov, conf, m),
			Provenance:     prov,
			ContextSamples: samples,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// categoryTerm is 1 for the case category, PartialCategory for a related
// or overlapping one, otherwise 0.
func (r *Ranker) categoryTerm(caseCat, remCat taxonomy.Category) float64 {
	switch {
	case caseCat == "" || remCat == "":
		return 0
	case caseCat == remCat:
		return 1
	case strings.Contains(string(caseCat), string(remCat)),
		strings.Contains(string(remCat), string(caseCat)),
		r.tax.Related(caseCat, remCat):
		return r.weights.PartialCategory
	}
	return 0
}

func (r *Ranker) rationale(prov Provenance, conf float64, m merit.Result) string {
	var text string
	switch prov {
	case ProvenanceAI:
		text = "Recommended by AI analysis based on document content"
	case ProvenanceRule:
		switch {
		case conf > 0.7:
			text = "Strongly indicated by multiple evidence in your documents"
		case conf > 0.4:
			text = "Moderately indicated by evidence in your documents"
		default:
			text = "Potentially relevant based on document analysis"
		}
	default:
		text = "Standard form for this category of legal issue"
	}
	if m.Score < r.weights.LowMerit {
		text += fmt.Sprintf(". Case strength is below %.0f%%; add supporting documents before filing", r.weights.LowMerit*100)
	}
	return text
}

// #endregion ranker

// #region helpers
func boolTerm(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// overlap is the fraction of refs found in topics.
func overlap(refs []string, topics map[string]bool) float64 {
	if len(refs) == 0 {
		return 0
	}
	hit := 0
	for _, ref := range refs {
		if topics[ref] {
			hit++
		}
	}
	return float64(hit) / float64(len(refs))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}

// #endregion helpers

package merit

import (
	"math"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/issues"
)

// #region calibration
// Calibration holds the merit caps and sub-weights. None of the values is
// derived from outcome data; treat them as tunable.
type Calibration struct {
	EvidenceCap           float64 // evidenceStrength ceiling
	EvidenceCountWeight   float64 // weight of entityCount/EvidenceCountNorm
	EvidenceCountNorm     float64
	EvidenceVarietyWeight float64 // weight of variety/4

	ClarityCap         float64
	ClarityConfWeight  float64 // weight of average confidence of the top issues
	ClarityCountWeight float64 // weight of min(1, n/ClarityTopN)
	ClarityTopN        int

	CompletenessCap float64
	AddressWeight   float64
	NameWeight      float64
	DateWeight      float64
	ContactWeight   float64

	QualityCap         float64
	QualityDocWeight   float64 // weight of min(docs, QualityDocNorm)/QualityDocNorm
	QualityDocNorm     float64
	QualityScoreWeight float64 // weight of min(1, primary/ClearCaseScore)
	ClearCaseScore     float64 // primary category score of a very clear case

	Floor float64 // minimum score once any issue is detected

	// Applied to an enrichment merit estimate.
	FewDocumentsFactor float64 // when fewer than MinDocuments
	MinDocuments       int
	FewEntitiesFactor  float64 // when fewer than MinEntities
	MinEntities        int
}

// DefaultCalibration returns the defaults the scoring has always used.
// The caps and the floor have no recorded derivation; revalidate them
// against labelled outcomes before tuning.
func DefaultCalibration() Calibration {
	return Calibration{
		EvidenceCap:           0.25,
		EvidenceCountWeight:   0.15,
		EvidenceCountNorm:     20,
		EvidenceVarietyWeight: 0.10,

		ClarityCap:         0.35,
		ClarityConfWeight:  0.25,
		ClarityCountWeight: 0.10,
		ClarityTopN:        3,

		CompletenessCap: 0.20,
		AddressWeight:   0.07,
		NameWeight:      0.06,
		DateWeight:      0.05,
		ContactWeight:   0.02,

		QualityCap:         0.20,
		QualityDocWeight:   0.10,
		QualityDocNorm:     5,
		QualityScoreWeight: 0.10,
		ClearCaseScore:     100,

		Floor: 0.15,

		FewDocumentsFactor: 0.9,
		MinDocuments:       2,
		FewEntitiesFactor:  0.95,
		MinEntities:        3,
	}
}

// #endregion calibration

// #region types
// Components are the four capped merit signals.
type Components struct {
	EvidenceStrength   float64 `json:"evidence_strength"`
	IssueClarity       float64 `json:"issue_clarity"`
	EntityCompleteness float64 `json:"entity_completeness"`
	DocumentQuality    float64 `json:"document_quality"`
}

// Sum adds the four components.
func (c Components) Sum() float64 {
	return c.EvidenceStrength + c.IssueClarity + c.EntityCompleteness + c.DocumentQuality
}

// Result is the merit of one case.
type Result struct {
	Score      float64    `json:"score"`
	Components Components `json:"components"`
}

// Input is everything merit depends on.
type Input struct {
	Entities         evidence.Entities
	Issues           []issues.DetectedIssue // sorted, highest score first
	CategoryScores   category.Scores
	DocumentCount    int // valid documents, regardless of weight
	// Enriched is an external merit estimate in [0,1], or nil.
	Enriched *float64
}

// #endregion types

// #region scorer
// Scorer computes merit.
type Scorer struct {
	cal Calibration
}

// NewScorer creates a scorer with the given calibration.
func NewScorer(cal Calibration) *Scorer {
	return &Scorer{cal: cal}
}

// Score combines the components. Missing inputs contribute zero.
func (s *Scorer) Score(in Input) Result {
	ents := in.Entities.Dedup()
	comp := Components{
		EvidenceStrength:   s.evidenceStrength(ents),
		IssueClarity:       s.issueClarity(in.Issues),
		EntityCompleteness: s.entityCompleteness(ents),
		DocumentQuality:    s.documentQuality(in.DocumentCount, in.CategoryScores),
	}

	score := clamp01(comp.Sum())
	if in.Enriched != nil && isFinite(*in.Enriched) {
		score = clamp01(*in.Enriched)
		if in.DocumentCount < s.cal.MinDocuments {
			score *= s.cal.FewDocumentsFactor
		}
		if ents.Count() < s.cal.MinEntities {
			score *= s.cal.FewEntitiesFactor
		}
	}
	if len(in.Issues) > 0 && score < s.cal.Floor {
		score = s.cal.Floor
	}
	return Result{Score: clamp01(score), Components: comp}
}

func (s *Scorer) evidenceStrength(ents evidence.Entities) float64 {
	var v float64
	if s.cal.EvidenceCountNorm > 0 {
		v += float64(ents.Count()) / s.cal.EvidenceCountNorm * s.cal.EvidenceCountWeight
	}
	v += float64(ents.Variety()) / 4 * s.cal.EvidenceVarietyWeight
	return min(s.cal.EvidenceCap, v)
}

func (s *Scorer) issueClarity(detected []issues.DetectedIssue) float64 {
	if len(detected) == 0 || s.cal.ClarityTopN <= 0 {
		return 0
	}
	top := detected[:min(len(detected), s.cal.ClarityTopN)]
	var sum float64
	for _, d := range top {
		sum += clamp01(d.Confidence)
	}
	avg := sum / float64(len(top))
	count := min(1, float64(len(detected))/float64(s.cal.ClarityTopN))
	return min(s.cal.ClarityCap, avg*s.cal.ClarityConfWeight+count*s.cal.ClarityCountWeight)
}

func (s *Scorer) entityCompleteness(ents evidence.Entities) float64 {
	var v float64
	if len(ents.Addresses) > 0 {
		v += s.cal.AddressWeight
	}
	if len(ents.Names) > 0 {
		v += s.cal.NameWeight
	}
	if len(ents.Dates) > 0 {
		v += s.cal.DateWeight
	}
	if ents.HasContact() {
		v += s.cal.ContactWeight
	}
	return min(s.cal.CompletenessCap, v)
}

func (s *Scorer) documentQuality(docs int, scores category.Scores) float64 {
	var v float64
	if s.cal.QualityDocNorm > 0 && docs > 0 {
		v += min(float64(docs), s.cal.QualityDocNorm) / s.cal.QualityDocNorm * s.cal.QualityDocWeight
	}
	if primary, ok := scores.Primary(); ok && s.cal.ClearCaseScore > 0 {
		v += min(1, primary.Raw/s.cal.ClearCaseScore) * s.cal.QualityScoreWeight
	}
	return min(s.cal.QualityCap, v)
}

// #endregion scorer

// #region helpers
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion helpers

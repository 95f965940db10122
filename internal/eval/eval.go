package eval

import (
	"fmt"
	"math"

	"github.com/smartdispute/case-engine/internal/pipeline"
)

// #region eval-harness
// EvalHarness validates a finished analysis bundle.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the bundle's range and ordering guarantees. The low merit
// check is informational and never fails the run.
func (h *EvalHarness) Run(b pipeline.Bundle) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, why string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, why)
		}
	}

	// 1. Merit in [0,1]
	ms := b.Merit.Score
	check("merit_range", ms, inUnit(ms), fmt.Sprintf("merit %.4f outside [0,1]", ms))

	// 2. Floor when issues were found
	floorPass := len(b.DetectedIssues) == 0 || ms >= h.config.MeritFloor-1e-12
	check("merit_floor", ms, floorPass, fmt.Sprintf("merit %.4f below floor %.2f with %d issues", ms, h.config.MeritFloor, len(b.DetectedIssues)))

	// 3. Components within caps
	comp, caps := b.Merit.Components, h.config.ComponentCaps
	compPass := within(comp.EvidenceStrength, caps.EvidenceStrength) &&
		within(comp.IssueClarity, caps.IssueClarity) &&
		within(comp.EntityCompleteness, caps.EntityCompleteness) &&
		within(comp.DocumentQuality, caps.DocumentQuality)
	check("merit_components", comp.Sum(), compPass, "merit component outside its cap")

	// 4. Category scores non-negative and bounded
	maxRaw := 0.0
	rawPass := true
	for _, v := range b.CategoryScores {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			rawPass = false
		}
		maxRaw = max(maxRaw, v)
	}
	if h.config.MaxRawScore > 0 && maxRaw > h.config.MaxRawScore {
		rawPass = false
	}
	check("category_scores", maxRaw, rawPass, fmt.Sprintf("category score %.1f invalid", maxRaw))

	// 5. Primary category is the top positive score
	check("primary_category", boolValue(primaryConsistent(b)), primaryConsistent(b), "primary category does not match the highest score")

	// 6. Issues: confidence range, sample cap and order
	issueBad := 0
	maxSamples := 0
	for i, d := range b.DetectedIssues {
		maxSamples = max(maxSamples, len(d.ContextSamples))
		if !inUnit(d.Confidence) || d.Score <= 0 {
			issueBad++
		}
		if i > 0 && b.DetectedIssues[i-1].Score < d.Score {
			issueBad++
		}
	}
	check("issue_order", float64(issueBad), issueBad == 0, fmt.Sprintf("%d issue violations", issueBad))
	samplePass := h.config.MaxSamples <= 0 || maxSamples <= h.config.MaxSamples
	check("sample_cap", float64(maxSamples), samplePass, fmt.Sprintf("%d context samples exceeds %d", maxSamples, h.config.MaxSamples))

	// 7. Recommendations: score range and order
	recBad := 0
	for i, r := range b.Recommendations {
		if !inUnit(r.Score) {
			recBad++
		}
		if i > 0 && b.Recommendations[i-1].Score < r.Score {
			recBad++
		}
	}
	check("recommendation_order", float64(recBad), recBad == 0, fmt.Sprintf("%d recommendation violations", recBad))

	// 8. Low merit: informational only
	metrics = append(metrics, EvalMetric{
		Name:  "low_merit",
		Value: ms,
		Pass:  ms >= h.config.LowMerit,
	})

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// within allows a small epsilon for summed float weights.
func within(v, limit float64) bool {
	return v >= 0 && v <= limit+1e-9
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// primaryConsistent holds when the primary category carries the highest
// score, or when no category scored and the primary came from enrichment
// or is absent.
func primaryConsistent(b pipeline.Bundle) bool {
	best := 0.0
	for _, v := range b.CategoryScores {
		best = max(best, v)
	}
	if b.PrimaryCategory == nil {
		return best == 0
	}
	if best == 0 {
		return b.AnalysisMethod == pipeline.MethodAIEnhanced
	}
	return b.CategoryScores[*b.PrimaryCategory] == best
}

// #endregion helpers

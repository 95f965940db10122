package eval

import (
	"github.com/smartdispute/case-engine/internal/issues"
	"github.com/smartdispute/case-engine/internal/merit"
)

// #region eval-config
// EvalConfig holds thresholds for post-analysis validation.
type EvalConfig struct {
	MeritFloor    float64          // minimum merit when any issue was detected
	LowMerit      float64          // warn if merit falls below this
	MaxRawScore   float64          // reject category scores above this; 0 disables
	ComponentCaps merit.Components // per-component ceilings
	MaxSamples    int              // context samples per issue
}

// DefaultEvalConfig returns defaults matching the default calibration.
func DefaultEvalConfig() EvalConfig {
	cal := merit.DefaultCalibration()
	return EvalConfig{
		MeritFloor:  cal.Floor,
		LowMerit:    0.40,
		MaxRawScore: 0,
		ComponentCaps: merit.Components{
			EvidenceStrength:   cal.EvidenceCap,
			IssueClarity:       cal.ClarityCap,
			EntityCompleteness: cal.CompletenessCap,
			DocumentQuality:    cal.QualityCap,
		},
		MaxSamples: issues.DefaultConfig().MaxSamples,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-analysis validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result

package pipeline

import (
	"runtime"
	"time"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/issues"
	"github.com/smartdispute/case-engine/internal/merit"
	"github.com/smartdispute/case-engine/internal/recommend"
	"github.com/smartdispute/case-engine/internal/taxonomy"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #region config
// Config bundles the stage configurations.
type Config struct {
	Category            category.Config
	Issues              issues.Config
	Merit               merit.Calibration
	Ranking             recommend.Weights
	MaxDocumentRunes    int
	DefaultJurisdiction string
	EnrichTimeout       time.Duration
	Workers             int // batch workers; 0 means one per CPU
}

// DefaultConfig returns defaults for every stage.
func DefaultConfig() Config {
	return Config{
		Category:            category.DefaultConfig(),
		Issues:              issues.DefaultConfig(),
		Merit:               merit.DefaultCalibration(),
		Ranking:             recommend.DefaultWeights(),
		MaxDocumentRunes:    textnorm.MaxDocumentRunes,
		DefaultJurisdiction: "ON",
		EnrichTimeout:       20 * time.Second,
		Workers:             runtime.NumCPU(),
	}
}

// #endregion config

// #region bundle
// Method says whether an enrichment insight took part in the analysis.
type Method string

const (
	MethodRuleBased  Method = "rule_based"
	MethodAIEnhanced Method = "ai_enhanced"
)

// Bundle is the complete result of one analysis.
type Bundle struct {
	CategoryScores  map[taxonomy.Category]float64 `json:"category_scores"`
	PrimaryCategory *taxonomy.Category            `json:"primary_category"`
	DetectedIssues  []issues.DetectedIssue        `json:"detected_issues"`
	Merit           merit.Result                  `json:"merit"`
	Recommendations []recommend.Candidate         `json:"recommendations"`
	AnalysisMethod  Method                        `json:"analysis_method"`
}

// ZeroBundle is the valid, empty result returned for unusable input.
func ZeroBundle() Bundle {
	return Bundle{
		CategoryScores:  map[taxonomy.Category]float64{},
		DetectedIssues:  []issues.DetectedIssue{},
		Recommendations: []recommend.Candidate{},
		AnalysisMethod:  MethodRuleBased,
	}
}

// #endregion bundle

// #region batch-types
// BatchItem is one case in a batch. An empty ID is replaced with a UUID.
type BatchItem struct {
	ID       string                 `json:"id,omitempty"`
	Evidence *evidence.CaseEvidence `json:"evidence"`
}

// BatchResult pairs a case ID with its bundle, or marks it skipped when
// the batch context ended before the case started.
type BatchResult struct {
	ID      string  `json:"id"`
	Bundle  *Bundle `json:"bundle,omitempty"`
	Skipped bool    `json:"skipped,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// #endregion batch-types

package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/smartdispute/case-engine/internal/enrich"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/pipeline"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig overrides parts of the default replay configuration.
// Zero values keep the defaults.
type FixtureConfig struct {
	DefaultJurisdiction string            `json:"default_jurisdiction,omitempty"`
	EvalConfig          FixtureEvalConfig `json:"eval_config"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	MeritFloor  float64 `json:"merit_floor,omitempty"`
	LowMerit    float64 `json:"low_merit,omitempty"`
	MaxRawScore float64 `json:"max_raw_score,omitempty"`
}

// FixtureCase is one recorded case. Insight, when present, is a recorded
// enrichment reply replayed offline.
type FixtureCase struct {
	ID       string                `json:"id"`
	Evidence evidence.CaseEvidence `json:"evidence"`
	Insight  *enrich.Insight       `json:"insight,omitempty"`
	Expect   FixtureExpectation    `json:"expect"`
}

// FixtureExpectation lists what the analysis must produce. Empty fields
// are not checked.
type FixtureExpectation struct {
	PrimaryCategory   string   `json:"primary_category,omitempty"`
	NoPrimary         bool     `json:"no_primary,omitempty"`
	IssueTypes        []string `json:"issue_types,omitempty"`
	MeritMin          *float64 `json:"merit_min,omitempty"`
	MeritMax          *float64 `json:"merit_max,omitempty"`
	TopRecommendation string   `json:"top_recommendation,omitempty"`
	AnalysisMethod    string   `json:"analysis_method,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() Case {
	ev := fc.Evidence
	exp := Expectation{
		NoPrimary:         fc.Expect.NoPrimary,
		IssueTypes:        fc.Expect.IssueTypes,
		MeritMin:          fc.Expect.MeritMin,
		MeritMax:          fc.Expect.MeritMax,
		TopRecommendation: fc.Expect.TopRecommendation,
		AnalysisMethod:    pipeline.Method(fc.Expect.AnalysisMethod),
	}
	if fc.Expect.PrimaryCategory != "" {
		exp.PrimaryCategory = taxonomy.Category(fc.Expect.PrimaryCategory)
		if c, ok := taxonomy.ParseCategory(fc.Expect.PrimaryCategory); ok {
			exp.PrimaryCategory = c
		}
	}
	return Case{
		ID:       fc.ID,
		Evidence: &ev,
		Insight:  fc.Insight,
		Expect:   exp,
	}
}

// ToCases converts every fixture case.
func (f *Fixture) ToCases() []Case {
	out := make([]Case, len(f.Cases))
	for i := range f.Cases {
		out[i] = f.Cases[i].ToCase()
	}
	return out
}

// ToReplayConfig applies the fixture overrides to the defaults.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	return fc.ApplyTo(DefaultReplayConfig())
}

// ApplyTo applies the fixture overrides to config.
func (fc *FixtureConfig) ApplyTo(config ReplayConfig) ReplayConfig {
	if fc.DefaultJurisdiction != "" {
		config.Pipeline.DefaultJurisdiction = fc.DefaultJurisdiction
	}
	ec := fc.EvalConfig
	if ec.MeritFloor > 0 {
		config.EvalConfig.MeritFloor = ec.MeritFloor
	}
	if ec.LowMerit > 0 {
		config.EvalConfig.LowMerit = ec.LowMerit
	}
	if ec.MaxRawScore > 0 {
		config.EvalConfig.MaxRawScore = ec.MaxRawScore
	}
	return config
}

// #endregion fixture-loader

// #region fixture-export

// FromBundle builds a fixture case whose expectations pin the analysis b.
// Used to record regression baselines.
func FromBundle(id string, ev evidence.CaseEvidence, b pipeline.Bundle) FixtureCase {
	exp := FixtureExpectation{
		AnalysisMethod: string(b.AnalysisMethod),
		IssueTypes:     []string{},
	}
	if b.PrimaryCategory != nil {
		exp.PrimaryCategory = string(*b.PrimaryCategory)
	} else {
		exp.NoPrimary = true
	}
	for _, d := range b.DetectedIssues {
		exp.IssueTypes = append(exp.IssueTypes, d.IssueType)
	}
	lo, hi := max(0, b.Merit.Score-0.01), min(1, b.Merit.Score+0.01)
	exp.MeritMin, exp.MeritMax = &lo, &hi
	if len(b.Recommendations) > 0 {
		exp.TopRecommendation = b.Recommendations[0].ID
	}
	return FixtureCase{ID: id, Evidence: ev, Expect: exp}
}

// #endregion fixture-export

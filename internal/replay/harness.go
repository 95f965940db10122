package replay

import (
	"fmt"
	"slices"
	"strings"

	"github.com/smartdispute/case-engine/internal/enrich"
	"github.com/smartdispute/case-engine/internal/eval"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/pipeline"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region types
// Case is a single recorded case for replay.
type Case struct {
	ID       string
	Evidence *evidence.CaseEvidence
	Insight  *enrich.Insight
	Expect   Expectation
}

// Expectation is what a replayed analysis must match.
type Expectation struct {
	PrimaryCategory   taxonomy.Category
	NoPrimary         bool
	IssueTypes        []string // each must be detected
	MeritMin          *float64
	MeritMax          *float64
	TopRecommendation string
	AnalysisMethod    pipeline.Method
}

// ReplayConfig bundles pipeline and eval configs for a replay run.
type ReplayConfig struct {
	Pipeline   pipeline.Config
	EvalConfig eval.EvalConfig
}

// DefaultReplayConfig returns defaults for both stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Pipeline:   pipeline.DefaultConfig(),
		EvalConfig: eval.DefaultEvalConfig(),
	}
}

// Result actions.
const (
	ActionPass     = "pass"
	ActionEvalFail = "eval_fail"
	ActionMismatch = "mismatch"
)

// ReplayResult captures the outcome of replaying one case.
type ReplayResult struct {
	CaseID     string          `json:"case_id"`
	Action     string          `json:"action"`
	Reason     string          `json:"reason"`
	Mismatches []string        `json:"mismatches,omitempty"`
	Bundle     pipeline.Bundle `json:"bundle"`
	EvalResult eval.EvalResult `json:"eval"`
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases   int `json:"total_cases"`
	Passed       int `json:"passed"`
	EvalFailures int `json:"eval_failures"`
	Mismatches   int `json:"mismatches"`
}

// OK reports whether every case passed.
func (s ReplaySummary) OK() bool {
	return s.Passed == s.TotalCases
}

// #endregion types

// #region replay
// Replay analyses every case offline: recorded insights stand in for the
// enrichment service. Each bundle is validated, then compared with the
// case expectations.
func Replay(tax *taxonomy.Taxonomy, cases []Case, config ReplayConfig) []ReplayResult {
	engine := pipeline.New(tax, config.Pipeline)
	evalInst := eval.NewEvalHarness(config.EvalConfig)
	results := make([]ReplayResult, 0, len(cases))

	for _, c := range cases {
		// 1. Analyse
		b := engine.Analyze(c.Evidence, c.Insight)

		// 2. Eval
		evalResult := evalInst.Run(b)
		if !evalResult.Passed {
			results = append(results, ReplayResult{
				CaseID:     c.ID,
				Action:     ActionEvalFail,
				Reason:     evalResult.Reason,
				Bundle:     b,
				EvalResult: evalResult,
			})
			continue
		}

		// 3. Expectations
		if miss := c.Expect.check(b); len(miss) > 0 {
			results = append(results, ReplayResult{
				CaseID:     c.ID,
				Action:     ActionMismatch,
				Reason:     fmt.Sprintf("%d expectation(s) not met: %s", len(miss), miss[0]),
				Mismatches: miss,
				Bundle:     b,
				EvalResult: evalResult,
			})
			continue
		}

		results = append(results, ReplayResult{
			CaseID:     c.ID,
			Action:     ActionPass,
			Reason:     "all expectations met",
			Bundle:     b,
			EvalResult: evalResult,
		})
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionPass:
			s.Passed++
		case ActionEvalFail:
			s.EvalFailures++
		case ActionMismatch:
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay

// #region expectations
func (exp Expectation) check(b pipeline.Bundle) []string {
	var miss []string

	switch {
	case exp.NoPrimary && b.PrimaryCategory != nil:
		miss = append(miss, fmt.Sprintf("primary_category: want none, got %s", *b.PrimaryCategory))
	case exp.PrimaryCategory != "" && b.PrimaryCategory == nil:
		miss = append(miss, fmt.Sprintf("primary_category: want %s, got none", exp.PrimaryCategory))
	case exp.PrimaryCategory != "" && *b.PrimaryCategory != exp.PrimaryCategory:
		miss = append(miss, fmt.Sprintf("primary_category: want %s, got %s", exp.PrimaryCategory, *b.PrimaryCategory))
	}

	detected := make([]string, len(b.DetectedIssues))
	for i, d := range b.DetectedIssues {
		detected[i] = d.IssueType
	}
	for _, want := range exp.IssueTypes {
		if !slices.Contains(detected, want) {
			miss = append(miss, fmt.Sprintf("issue %s not detected (got %s)", want, strings.Join(detected, ", ")))
		}
	}

	if exp.MeritMin != nil && b.Merit.Score < *exp.MeritMin {
		miss = append(miss, fmt.Sprintf("merit %.4f below %.4f", b.Merit.Score, *exp.MeritMin))
	}
	if exp.MeritMax != nil && b.Merit.Score > *exp.MeritMax {
		miss = append(miss, fmt.Sprintf("merit %.4f above %.4f", b.Merit.Score, *exp.MeritMax))
	}

	if exp.TopRecommendation != "" {
		got := "none"
		if len(b.Recommendations) > 0 {
			got = b.Recommendations[0].ID
		}
		if got != exp.TopRecommendation {
			miss = append(miss, fmt.Sprintf("top recommendation: want %s, got %s", exp.TopRecommendation, got))
		}
	}

	if exp.AnalysisMethod != "" && b.AnalysisMethod != exp.AnalysisMethod {
		miss = append(miss, fmt.Sprintf("analysis_method: want %s, got %s", exp.AnalysisMethod, b.AnalysisMethod))
	}
	return miss
}

// #endregion expectations

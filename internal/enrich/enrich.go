package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/taxonomy"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// MaxPromptRunes caps the case text sent to an enrichment service.
const MaxPromptRunes = 10000

// ErrNoInsight is returned when a service answered but said nothing usable.
var ErrNoInsight = errors.New("enrichment returned no usable insight")

// #region types
// Insight is the partial analysis an external service may contribute.
// Every field is optional.
type Insight struct {
	Category          taxonomy.Category `json:"category,omitempty"`
	MeritScore        *float64          `json:"merit_score,omitempty"`
	SuggestedRemedies []string          `json:"suggested_remedies,omitempty"`
	LegalIssues       []string          `json:"legal_issues,omitempty"`
}

// Enricher refines an analysis with an external signal. Implementations
// may fail; callers fall back to rule-based analysis.
type Enricher interface {
	Enrich(ctx context.Context, ev *evidence.CaseEvidence) (*Insight, error)
}

// Noop never contributes an insight.
type Noop struct{}

// Enrich returns no insight and no error.
func (Noop) Enrich(context.Context, *evidence.CaseEvidence) (*Insight, error) {
	return nil, nil
}

// Func adapts a function to Enricher.
type Func func(ctx context.Context, ev *evidence.CaseEvidence) (*Insight, error)

// Enrich calls f.
func (f Func) Enrich(ctx context.Context, ev *evidence.CaseEvidence) (*Insight, error) {
	return f(ctx, ev)
}

// #endregion types

// #region prompt
// CaseText renders the evidence as plain text for a remote model, capped
// at maxRunes.
func CaseText(ev *evidence.CaseEvidence, maxRunes int) string {
	var b strings.Builder
	if ev.CaseType != "" {
		fmt.Fprintf(&b, "Case type: %s\n", ev.CaseType)
	}
	if ev.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", ev.Jurisdiction)
	}
	for i, d := range ev.Documents {
		if d.Validate() != "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Document %d ---\n%s\n", i+1, textnorm.Normalize(d.Text))
	}
	out, _ := textnorm.Truncate(b.String(), maxRunes)
	return out
}

// #endregion prompt

// #region decode
// insightFromMap reads the loosely typed fields a service returns. Unknown
// categories are dropped; merit given as a percentage is rescaled.
func insightFromMap(m map[string]any) (*Insight, error) {
	var in Insight
	if s, ok := m["category"].(string); ok {
		if c, ok := taxonomy.ParseCategory(s); ok {
			in.Category = c
		}
	}
	if v, ok := m["merit_score"].(float64); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		if v > 1 && v <= 100 {
			v /= 100
		}
		v = max(0, min(1, v))
		in.MeritScore = &v
	}
	in.SuggestedRemedies = stringList(m["suggested_remedies"])
	in.LegalIssues = stringList(m["legal_issues"])

	if in.Category == "" && in.MeritScore == nil && len(in.SuggestedRemedies) == 0 && len(in.LegalIssues) == 0 {
		return nil, ErrNoInsight
	}
	return &in, nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// #endregion decode

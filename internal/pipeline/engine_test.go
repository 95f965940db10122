package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smartdispute/case-engine/internal/enrich"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/recommend"
	"github.com/smartdispute/case-engine/internal/taxonomy"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const landlordText = "My landlord issued an N4 notice for unpaid rent of $1800 and has not repaired the broken heater."

func landlordCase() *evidence.CaseEvidence {
	return &evidence.CaseEvidence{
		CaseType:  "landlord_tenant",
		Documents: []evidence.Document{{Text: landlordText, Weight: 1}},
	}
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(taxonomy.MustDefault(), DefaultConfig(), opts...)
}

func ptr(v float64) *float64 { return &v }

func TestScoreLandlordExample(t *testing.T) {
	b := newEngine(t).Score(context.Background(), landlordCase())

	require.NotNil(t, b.PrimaryCategory)
	assert.Equal(t, taxonomy.LandlordTenant, *b.PrimaryCategory)

	require.NotEmpty(t, b.DetectedIssues)
	found := false
	for _, d := range b.DetectedIssues {
		if d.IssueType == "maintenance_issues" || d.IssueType == "eviction_defense" {
			found = found || d.Confidence > 0
		}
	}
	assert.True(t, found, "expected eviction or maintenance issue with positive confidence")

	assert.GreaterOrEqual(t, b.Merit.Score, 0.15)
	assert.LessOrEqual(t, b.Merit.Score, 0.6)
	assert.Equal(t, MethodRuleBased, b.AnalysisMethod)

	require.NotEmpty(t, b.Recommendations)
	top := b.Recommendations[0]
	assert.Equal(t, "landlord-tenant_eviction_defense", top.ID)
	assert.Equal(t, recommend.ProvenanceRule, top.Provenance)
	assert.True(t, strings.HasPrefix(top.Rationale, "Potentially relevant based on document analysis"))
	assert.Contains(t, top.Rationale, "below 40%")
}

func TestScoreEmptyDocuments(t *testing.T) {
	ev := &evidence.CaseEvidence{CaseType: "landlord_tenant"}
	b := newEngine(t).Score(context.Background(), ev)

	assert.Empty(t, b.CategoryScores)
	assert.Nil(t, b.PrimaryCategory)
	assert.Empty(t, b.DetectedIssues)
	assert.Zero(t, b.Merit.Score)
	require.NotEmpty(t, b.Recommendations)
	for _, r := range b.Recommendations {
		assert.Equal(t, recommend.ProvenanceFallback, r.Provenance, r.ID)
	}
}

func TestScoreNothingAtAll(t *testing.T) {
	b := newEngine(t).Score(context.Background(), &evidence.CaseEvidence{})
	assert.Empty(t, b.Recommendations)
	assert.Zero(t, b.Merit.Score)

	nilBundle := newEngine(t).Score(context.Background(), nil)
	if diff := cmp.Diff(ZeroBundle(), nilBundle); diff != "" {
		t.Errorf("nil evidence mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreRangesAndOrdering(t *testing.T) {
	ev := landlordCase()
	ev.Documents = append(ev.Documents,
		evidence.Document{Text: "The Landlord and Tenant Board hearing is set. The landlord refuses to fix the mold.", Weight: 2},
		evidence.Document{Text: "I was fired without notice after reporting harassment at work.", Weight: 0.5},
	)
	ev.Entities = evidence.Entities{Names: []string{"Jane Doe"}, Phones: []string{"416-555-0100"}}
	b := newEngine(t).Score(context.Background(), ev)

	assert.True(t, b.Merit.Score >= 0 && b.Merit.Score <= 1)
	for _, d := range b.DetectedIssues {
		assert.True(t, d.Confidence >= 0 && d.Confidence <= 1, d.IssueType)
	}
	for i, r := range b.Recommendations {
		assert.True(t, r.Score >= 0 && r.Score <= 1, r.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, b.Recommendations[i-1].Score, r.Score)
		}
	}
	for i := 1; i < len(b.DetectedIssues); i++ {
		assert.GreaterOrEqual(t, b.DetectedIssues[i-1].Score, b.DetectedIssues[i].Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	e := newEngine(t)
	first := e.Score(context.Background(), landlordCase())
	second := e.Score(context.Background(), landlordCase())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeat analysis differs (-first +second):\n%s", diff)
	}
}

func TestScoreSkipsMalformedDocuments(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := newEngine(t, WithLogger(zap.New(core)))

	clean := e.Score(context.Background(), landlordCase())

	dirty := landlordCase()
	dirty.Documents = append(dirty.Documents,
		evidence.Document{Text: "rent \xff eviction", Weight: 1},
		evidence.Document{Text: "eviction eviction", Weight: math.NaN()},
	)
	got := e.Score(context.Background(), dirty)

	if diff := cmp.Diff(clean, got); diff != "" {
		t.Errorf("malformed documents changed the analysis (-clean +got):\n%s", diff)
	}
	assert.Equal(t, 2, logs.FilterMessage("skipping malformed document").Len())
}

func TestScoreTruncatesLongDocuments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDocumentRunes = 20
	e := New(taxonomy.MustDefault(), cfg)

	ev := &evidence.CaseEvidence{Documents: []evidence.Document{
		{Text: "My landlord. " + strings.Repeat("x", 100) + " rent eviction"},
	}}
	b := e.Score(context.Background(), ev)
	// only "landlord" survives the cut: one hit in the only document
	assert.InDelta(t, 200, b.CategoryScores[taxonomy.LandlordTenant], 1e-9)
}

func TestAnalyzeRecoversFromPanic(t *testing.T) {
	broken := &Engine{logger: zap.NewNop()}
	got := broken.Analyze(landlordCase(), nil)
	if diff := cmp.Diff(ZeroBundle(), got); diff != "" {
		t.Errorf("expected zero bundle (-want +got):\n%s", diff)
	}
}

func TestEnricherFailureDegradesToRules(t *testing.T) {
	ruleOnly := newEngine(t).Score(context.Background(), landlordCase())

	failing := enrich.Func(func(context.Context, *evidence.CaseEvidence) (*enrich.Insight, error) {
		return nil, errors.New("service unavailable")
	})
	panicking := enrich.Func(func(context.Context, *evidence.CaseEvidence) (*enrich.Insight, error) {
		panic("bad reply")
	})
	cfg := DefaultConfig()
	cfg.EnrichTimeout = 10 * time.Millisecond
	slow := enrich.Func(func(ctx context.Context, _ *evidence.CaseEvidence) (*enrich.Insight, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	for name, e := range map[string]*Engine{
		"error":   newEngine(t, WithEnricher(failing)),
		"panic":   newEngine(t, WithEnricher(panicking)),
		"timeout": New(taxonomy.MustDefault(), cfg, WithEnricher(slow)),
		"noop":    newEngine(t, WithEnricher(enrich.Noop{})),
	} {
		t.Run(name, func(t *testing.T) {
			got := e.Score(context.Background(), landlordCase())
			if diff := cmp.Diff(ruleOnly, got); diff != "" {
				t.Errorf("degraded analysis differs (-rules +got):\n%s", diff)
			}
		})
	}
}

func TestEnricherInsightIsFoldedIn(t *testing.T) {
	en := enrich.Func(func(context.Context, *evidence.CaseEvidence) (*enrich.Insight, error) {
		return &enrich.Insight{
			Category:          taxonomy.Employment,
			MeritScore:        ptr(0.9),
			SuggestedRemedies: []string{"wrongful_dismissal"},
		}, nil
	})
	b := newEngine(t, WithEnricher(en)).Score(context.Background(), landlordCase())

	assert.Equal(t, MethodAIEnhanced, b.AnalysisMethod)
	// one document and no entities: 0.9 × 0.9 × 0.95
	assert.InDelta(t, 0.7695, b.Merit.Score, 1e-9)
	// rule primary wins over the insight category
	assert.Equal(t, taxonomy.LandlordTenant, *b.PrimaryCategory)

	var ai *recommend.Candidate
	for i, r := range b.Recommendations {
		if r.ID == "wrongful_dismissal" {
			ai = &b.Recommendations[i]
		}
	}
	require.NotNil(t, ai, "suggested remedy missing")
	assert.Equal(t, recommend.ProvenanceAI, ai.Provenance)
}

func TestEmptyEvidenceSkipsEnricher(t *testing.T) {
	calls := 0
	en := enrich.Func(func(context.Context, *evidence.CaseEvidence) (*enrich.Insight, error) {
		calls++
		return &enrich.Insight{
			Category:          taxonomy.Credit,
			MeritScore:        ptr(0.8),
			SuggestedRemedies: []string{"credit_report_dispute"},
		}, nil
	})
	e := newEngine(t, WithEnricher(en))

	for name, ev := range map[string]*evidence.CaseEvidence{
		"no documents":    {CaseType: "landlord_tenant"},
		"blank documents": {CaseType: "landlord_tenant", Documents: []evidence.Document{{Text: " \n\t", Weight: 1}}},
	} {
		t.Run(name, func(t *testing.T) {
			b := e.Score(context.Background(), ev)

			assert.Zero(t, calls, "enricher consulted without document text")
			assert.Zero(t, b.Merit.Score)
			assert.Nil(t, b.PrimaryCategory)
			assert.Equal(t, MethodRuleBased, b.AnalysisMethod)
			for _, r := range b.Recommendations {
				assert.Equal(t, recommend.ProvenanceFallback, r.Provenance, r.ID)
			}
		})
	}
}

func TestAnalyzeDropsInsightWithoutText(t *testing.T) {
	e := newEngine(t)
	in := &enrich.Insight{Category: taxonomy.Credit, MeritScore: ptr(0.8), SuggestedRemedies: []string{"credit_report_dispute"}}
	ev := &evidence.CaseEvidence{CaseType: "landlord_tenant"}

	if diff := cmp.Diff(e.Analyze(ev, nil), e.Analyze(ev, in)); diff != "" {
		t.Errorf("insight changed an empty case (-rules +insight):\n%s", diff)
	}
}

func TestInsightCategoryUsedWithoutRuleSignal(t *testing.T) {
	in := &enrich.Insight{Category: taxonomy.Credit}
	ev := &evidence.CaseEvidence{Documents: []evidence.Document{{Text: "Hello, nothing to see here.", Weight: 1}}}
	b := newEngine(t).Analyze(ev, in)

	for c, v := range b.CategoryScores {
		assert.Zero(t, v, c)
	}
	require.NotNil(t, b.PrimaryCategory)
	assert.Equal(t, taxonomy.Credit, *b.PrimaryCategory)
	assert.Equal(t, MethodAIEnhanced, b.AnalysisMethod)
	require.NotEmpty(t, b.Recommendations)
	assert.Equal(t, taxonomy.Credit, b.Recommendations[0].Category)
}

func TestDocumentWeightDoesNotChangeCount(t *testing.T) {
	e := newEngine(t)
	base := e.Score(context.Background(), landlordCase())
	// one document: 1/5 × 0.10 plus a saturated clarity-of-case term
	assert.InDelta(t, 0.12, base.Merit.Components.DocumentQuality, 1e-9)

	for _, w := range []float64{0.1, 2.5} {
		ev := landlordCase()
		ev.Documents[0].Weight = w
		got := e.Score(context.Background(), ev)
		if diff := cmp.Diff(base.Merit, got.Merit); diff != "" {
			t.Errorf("weight %v changed merit (-weight 1 +got):\n%s", w, diff)
		}
	}
}

func TestBundleJSONShape(t *testing.T) {
	data, err := json.Marshal(ZeroBundle())
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"category_scores":{}`)
	assert.Contains(t, s, `"primary_category":null`)
	assert.Contains(t, s, `"detected_issues":[]`)
	assert.Contains(t, s, `"recommendations":[]`)
	assert.Contains(t, s, `"analysis_method":"rule_based"`)
}

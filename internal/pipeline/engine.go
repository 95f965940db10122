package pipeline

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/enrich"
	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/issues"
	"github.com/smartdispute/case-engine/internal/merit"
	"github.com/smartdispute/case-engine/internal/recommend"
	"github.com/smartdispute/case-engine/internal/taxonomy"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #endregion

// #region engine-struct

// Engine runs the analysis stages in order: category scoring, issue
// detection, merit, then recommendations. An Engine is safe for
// concurrent use once built.
type Engine struct {
	tax      *taxonomy.Taxonomy
	config   Config
	logger   *zap.Logger
	enricher enrich.Enricher

	scorer   *category.Scorer
	detector *issues.Detector
	merit    *merit.Scorer
	ranker   *recommend.Ranker
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEnricher plugs in an external enrichment service.
func WithEnricher(en enrich.Enricher) Option {
	return func(e *Engine) { e.enricher = en }
}

// #endregion

// #region constructor

// New wires an engine over tax.
func New(tax *taxonomy.Taxonomy, config Config, opts ...Option) *Engine {
	e := &Engine{
		tax:      tax,
		config:   config,
		logger:   zap.NewNop(),
		scorer:   category.NewScorer(tax, config.Category),
		detector: issues.NewDetector(tax, config.Issues),
		merit:    merit.NewScorer(config.Merit),
		ranker:   recommend.NewRanker(tax, config.Ranking),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Taxonomy returns the taxonomy the engine scores against.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy { return e.tax }

// #endregion

// #region score

// Score analyses one case. When an enricher is configured and the case
// has document text, the enricher is consulted first; if it fails or times
// out the analysis is purely rule-based. Score never fails: unusable input
// yields ZeroBundle.
func (e *Engine) Score(ctx context.Context, ev *evidence.CaseEvidence) Bundle {
	if ev == nil {
		e.logger.Warn("no evidence supplied, returning empty analysis")
		return ZeroBundle()
	}
	var insight *enrich.Insight
	if hasText(ev.Documents) {
		insight = e.consult(ctx, ev)
	}
	return e.Analyze(ev, insight)
}

// Analyze runs the rule stages over ev, folding in insight when it is
// non-nil and some document has text. It does no I/O.
func (e *Engine) Analyze(ev *evidence.CaseEvidence, insight *enrich.Insight) (b Bundle) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("analysis panicked, returning empty analysis", zap.Any("panic", r))
			b = ZeroBundle()
		}
	}()
	if ev == nil {
		return ZeroBundle()
	}

	// 1. Sanitise
	docs := e.prepare(ev.Documents)
	if len(docs) == 0 && insight != nil {
		e.logger.Debug("ignoring insight for a case without document text")
		insight = nil
	}

	// 2. Categories
	scores := e.scorer.Score(docs)

	// 3. Issues
	detected := e.detector.Detect(scores.Ranked(), docs)

	// 4. Merit
	in := merit.Input{
		Entities:       ev.Entities,
		Issues:         detected,
		CategoryScores: scores,
		DocumentCount:  len(docs),
	}
	var suggested []string
	if insight != nil {
		in.Enriched = insight.MeritScore
		suggested = insight.SuggestedRemedies
	}
	m := e.merit.Score(in)

	// 5. Recommendations
	c := recommend.Case{
		Category:     e.caseCategory(ev, scores, insight),
		Jurisdiction: e.jurisdiction(ev),
		Urgency:      e.ranker.CaseUrgency(detected),
	}
	recs := e.ranker.Rank(c, m, detected, suggested)

	b = Bundle{
		CategoryScores:  scores.Map(),
		PrimaryCategory: primaryCategory(scores, insight),
		DetectedIssues:  detected,
		Merit:           m,
		Recommendations: recs,
		AnalysisMethod:  MethodRuleBased,
	}
	if insight != nil {
		b.AnalysisMethod = MethodAIEnhanced
	}

	e.logger.Debug("case analysed",
		zap.String("case_type", ev.CaseType),
		zap.Int("documents", len(docs)),
		zap.Int("issues", len(detected)),
		zap.Float64("merit", m.Score),
		zap.Int("recommendations", len(recs)),
		zap.String("method", string(b.AnalysisMethod)),
	)
	return b
}

// #endregion

// #region helpers

// consult asks the enricher for an insight, bounded by EnrichTimeout. Any
// failure is logged and treated as no insight.
func (e *Engine) consult(ctx context.Context, ev *evidence.CaseEvidence) (insight *enrich.Insight) {
	if e.enricher == nil {
		return nil
	}
	if e.config.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.EnrichTimeout)
		defer cancel()
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("enricher panicked: %v", r)
			}
		}()
		insight, err = e.enricher.Enrich(ctx, ev)
	}()
	if err != nil {
		e.logger.Warn("enrichment unavailable, using rule-based analysis", zap.Error(err))
		return nil
	}
	return insight
}

// prepare validates, normalises and truncates the documents, returning
// their texts. Malformed documents are skipped with a warning, blank ones
// silently.
func (e *Engine) prepare(in []evidence.Document) []string {
	docs := make([]string, 0, len(in))
	for i, d := range in {
		if reason := d.Validate(); reason != "" {
			e.logger.Warn("skipping malformed document", zap.Int("index", i), zap.String("reason", reason))
			continue
		}
		text := textnorm.Normalize(d.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if e.config.MaxDocumentRunes > 0 {
			var cut bool
			if text, cut = textnorm.Truncate(text, e.config.MaxDocumentRunes); cut {
				e.logger.Info("document truncated", zap.Int("index", i), zap.Int("max_runes", e.config.MaxDocumentRunes))
			}
		}
		docs = append(docs, text)
	}
	return docs
}

// hasText reports whether any well-formed document carries text.
func hasText(docs []evidence.Document) bool {
	for _, d := range docs {
		if d.Validate() == "" && strings.TrimSpace(d.Text) != "" {
			return true
		}
	}
	return false
}

// caseCategory prefers the declared case type, then the rule primary,
// then the enrichment category.
func (e *Engine) caseCategory(ev *evidence.CaseEvidence, scores category.Scores, insight *enrich.Insight) taxonomy.Category {
	if c, ok := taxonomy.ParseCategory(ev.CaseType); ok {
		return c
	}
	if p, ok := scores.Primary(); ok {
		return p.Category
	}
	if insight != nil && insight.Category.Valid() {
		return insight.Category
	}
	return ""
}

func (e *Engine) jurisdiction(ev *evidence.CaseEvidence) string {
	if ev.Jurisdiction != "" {
		return ev.Jurisdiction
	}
	return e.config.DefaultJurisdiction
}

func primaryCategory(scores category.Scores, insight *enrich.Insight) *taxonomy.Category {
	if p, ok := scores.Primary(); ok {
		c := p.Category
		return &c
	}
	if insight != nil && insight.Category.Valid() {
		c := insight.Category
		return &c
	}
	return nil
}

// #endregion

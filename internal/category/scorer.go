package category

import (
	"sort"
	"strings"

	"github.com/smartdispute/case-engine/internal/taxonomy"
)

// #region config
// Config holds the keyword weighting constants.
type Config struct {
	// MultiWordSpecificity multiplies the contribution of keywords with
	// more than one word.
	MultiWordSpecificity float64
	// Scale multiplies every keyword contribution.
	Scale float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MultiWordSpecificity: 1.5,
		Scale:                100,
	}
}

// #endregion config

// #region types
// Score is the raw relevance of one category.
type Score struct {
	Category taxonomy.Category `json:"category"`
	Raw      float64           `json:"raw_score"`
}

// Scores is the output of one scoring pass.
type Scores struct {
	ranked []Score
}

// NewScores builds Scores from precomputed values, ranking them the same
// way Scorer does.
func NewScores(scores []Score) Scores {
	ranked := make([]Score, len(scores))
	copy(ranked, scores)
	sortScores(ranked)
	return Scores{ranked: ranked}
}

// Map returns category → raw score. Empty when no documents were scored.
func (s Scores) Map() map[taxonomy.Category]float64 {
	out := make(map[taxonomy.Category]float64, len(s.ranked))
	for _, sc := range s.ranked {
		out[sc.Category] = sc.Raw
	}
	return out
}

// Ranked returns every scored category, highest first. Equal scores keep
// taxonomy order.
func (s Scores) Ranked() []Score {
	out := make([]Score, len(s.ranked))
	copy(out, s.ranked)
	return out
}

// Top returns up to n categories with a positive score, highest first.
func (s Scores) Top(n int) []Score {
	out := make([]Score, 0, n)
	for _, sc := range s.ranked {
		if len(out) == n || sc.Raw <= 0 {
			break
		}
		out = append(out, sc)
	}
	return out
}

// Get returns the raw score of c, 0 when unscored.
func (s Scores) Get(c taxonomy.Category) float64 {
	for _, sc := range s.ranked {
		if sc.Category == c {
			return sc.Raw
		}
	}
	return 0
}

// Primary returns the top category when its score is positive.
func (s Scores) Primary() (Score, bool) {
	if len(s.ranked) == 0 || s.ranked[0].Raw <= 0 {
		return Score{}, false
	}
	return s.ranked[0], true
}

// #endregion types

// #region scorer
// Scorer ranks categories by keyword evidence.
type Scorer struct {
	tax    *taxonomy.Taxonomy
	config Config
}

// NewScorer creates a scorer over tax.
func NewScorer(tax *taxonomy.Taxonomy, config Config) *Scorer {
	return &Scorer{tax: tax, config: config}
}

// Score rates every category against docs, which must already be
// normalised. For each keyword, df is the fraction of documents that
// contain it and c the occurrence count in the concatenated text; the
// keyword adds c × (1 + df) × Scale, times MultiWordSpecificity for
// multi-word keywords.
func (s *Scorer) Score(docs []string) Scores {
	if len(docs) == 0 {
		return Scores{}
	}
	joined := strings.Join(docs, " ")
	n := float64(len(docs))

	cats := s.tax.Categories()
	ranked := make([]Score, 0, len(cats))
	for _, spec := range cats {
		var total float64
		for _, m := range spec.Matchers() {
			c := m.Count(joined)
			if c == 0 {
				continue
			}
			present := 0
			for _, d := range docs {
				if m.Contains(d) {
					present++
				}
			}
			df := float64(present) / n
			contrib := float64(c) * (1 + df) * s.config.Scale
			if m.MultiWord() {
				contrib *= s.config.MultiWordSpecificity
			}
			total += contrib
		}
		ranked = append(ranked, Score{Category: spec.Category, Raw: total})
	}

	sortScores(ranked)
	return Scores{ranked: ranked}
}

func sortScores(ranked []Score) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Raw > ranked[j].Raw
	})
}

// #endregion scorer

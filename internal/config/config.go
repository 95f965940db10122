package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartdispute/case-engine/internal/category"
	"github.com/smartdispute/case-engine/internal/issues"
	"github.com/smartdispute/case-engine/internal/merit"
	"github.com/smartdispute/case-engine/internal/pipeline"
	"github.com/smartdispute/case-engine/internal/recommend"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// Config holds all casescore configuration.
type Config struct {
	// Keyword scoring, issue detection and input limits
	Engine EngineConfig `yaml:"engine"`

	// Merit calibration
	Merit MeritConfig `yaml:"merit"`

	// Recommendation weights
	Ranking RankingConfig `yaml:"ranking"`

	// Optional external enrichment
	Enrichment EnrichmentConfig `yaml:"enrichment"`

	// Catalogue source
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the rule stages.
type EngineConfig struct {
	MultiWordSpecificity float64 `yaml:"multi_word_specificity"`
	TopCategories        int     `yaml:"top_categories"`
	ContextRunes         int     `yaml:"context_runes"`
	MaxSamples           int     `yaml:"max_samples"`
	MaxDocumentRunes     int     `yaml:"max_document_runes"`
	DefaultJurisdiction  string  `yaml:"default_jurisdiction"`
	Workers              int     `yaml:"workers"` // 0 = one per CPU
}

// MeritConfig exposes the merit caps and adjustments.
type MeritConfig struct {
	Floor              float64 `yaml:"floor"`
	EvidenceCap        float64 `yaml:"evidence_cap"`
	ClarityCap         float64 `yaml:"clarity_cap"`
	CompletenessCap    float64 `yaml:"completeness_cap"`
	QualityCap         float64 `yaml:"quality_cap"`
	ClearCaseScore     float64 `yaml:"clear_case_score"`
	FewDocumentsFactor float64 `yaml:"few_documents_factor"`
	FewEntitiesFactor  float64 `yaml:"few_entities_factor"`
}

// RankingConfig holds the recommendation term weights.
type RankingConfig struct {
	Category        float64 `yaml:"category"`
	Jurisdiction    float64 `yaml:"jurisdiction"`
	Urgency         float64 `yaml:"urgency"`
	SuccessRate     float64 `yaml:"success_rate"`
	LegalRefs       float64 `yaml:"legal_refs"`
	PartialCategory float64 `yaml:"partial_category"`
	LowMerit        float64 `yaml:"low_merit"`
}

// EnrichmentConfig selects an enrichment provider.
type EnrichmentConfig struct {
	Provider string `yaml:"provider"` // none, gemini, grpc
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model"`
	Address  string `yaml:"address"`
	Timeout  string `yaml:"timeout"`
}

// TaxonomyConfig says where the catalogue comes from. Empty paths mean the
// embedded default catalogue.
type TaxonomyConfig struct {
	Path   string `yaml:"path"`    // YAML file
	DBPath string `yaml:"db_path"` // SQLite store seeded by `taxonomy seed`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Enrichment providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderGRPC   = "grpc"
)

// ValidProviders lists the supported enrichment providers.
var ValidProviders = []string{ProviderNone, ProviderGemini, ProviderGRPC}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "console"}
)

// DefaultConfig returns the defaults every stage has always used.
func DefaultConfig() *Config {
	cat := category.DefaultConfig()
	iss := issues.DefaultConfig()
	cal := merit.DefaultCalibration()
	w := recommend.DefaultWeights()

	return &Config{
		Engine: EngineConfig{
			MultiWordSpecificity: cat.MultiWordSpecificity,
			TopCategories:        iss.TopCategories,
			ContextRunes:         iss.ContextRunes,
			MaxSamples:           iss.MaxSamples,
			MaxDocumentRunes:     textnorm.MaxDocumentRunes,
			DefaultJurisdiction:  "ON",
			Workers:              0,
		},
		Merit: MeritConfig{
			Floor:              cal.Floor,
			EvidenceCap:        cal.EvidenceCap,
			ClarityCap:         cal.ClarityCap,
			CompletenessCap:    cal.CompletenessCap,
			QualityCap:         cal.QualityCap,
			ClearCaseScore:     cal.ClearCaseScore,
			FewDocumentsFactor: cal.FewDocumentsFactor,
			FewEntitiesFactor:  cal.FewEntitiesFactor,
		},
		Ranking: RankingConfig{
			Category:        w.Category,
			Jurisdiction:    w.Jurisdiction,
			Urgency:         w.Urgency,
			SuccessRate:     w.SuccessRate,
			LegalRefs:       w.LegalRefs,
			PartialCategory: w.PartialCategory,
			LowMerit:        w.LowMerit,
		},
		Enrichment: EnrichmentConfig{
			Provider: ProviderNone,
			Model:    "gemini-2.5-flash",
			Timeout:  "20s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CASESCORE_TAXONOMY"); path != "" {
		c.Taxonomy.Path = path
	}
	if path := os.Getenv("CASESCORE_TAXONOMY_DB"); path != "" {
		c.Taxonomy.DBPath = path
	}

	// Enrichment: a key or address switches the provider on unless one
	// was chosen explicitly.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Enrichment.APIKey = key
		if c.Enrichment.Provider == "" || c.Enrichment.Provider == ProviderNone {
			c.Enrichment.Provider = ProviderGemini
		}
	}
	if addr := os.Getenv("CASESCORE_ENRICH_ADDR"); addr != "" {
		c.Enrichment.Address = addr
		if c.Enrichment.Provider == "" || c.Enrichment.Provider == ProviderNone {
			c.Enrichment.Provider = ProviderGRPC
		}
	}

	if level := os.Getenv("CASESCORE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetEnrichTimeout returns the enrichment timeout as a duration.
func (c *Config) GetEnrichTimeout() time.Duration {
	d, err := time.ParseDuration(c.Enrichment.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	provider := c.Enrichment.Provider
	if provider == "" {
		provider = ProviderNone
	}
	if !slices.Contains(ValidProviders, provider) {
		return fmt.Errorf("invalid enrichment provider: %s (valid: %v)", provider, ValidProviders)
	}
	if provider == ProviderGemini && c.Enrichment.APIKey == "" {
		return fmt.Errorf("gemini enrichment requires an API key (set GEMINI_API_KEY)")
	}
	if provider == ProviderGRPC && c.Enrichment.Address == "" {
		return fmt.Errorf("grpc enrichment requires an address (set CASESCORE_ENRICH_ADDR)")
	}
	if c.Enrichment.Timeout != "" {
		if _, err := time.ParseDuration(c.Enrichment.Timeout); err != nil {
			return fmt.Errorf("invalid enrichment timeout %q: %w", c.Enrichment.Timeout, err)
		}
	}

	if c.Merit.Floor < 0 || c.Merit.Floor > 1 {
		return fmt.Errorf("merit floor %v outside [0,1]", c.Merit.Floor)
	}
	r := c.Ranking
	for name, v := range map[string]float64{
		"category": r.Category, "jurisdiction": r.Jurisdiction, "urgency": r.Urgency,
		"success_rate": r.SuccessRate, "legal_refs": r.LegalRefs, "partial_category": r.PartialCategory,
	} {
		if v < 0 {
			return fmt.Errorf("ranking weight %s is negative", name)
		}
	}
	if c.Engine.TopCategories < 1 {
		return fmt.Errorf("engine top_categories must be at least 1")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine workers must not be negative")
	}

	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}
	if !slices.Contains(validFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, validFormats)
	}
	return nil
}

// PipelineConfig maps the configuration onto the engine stages. Values not
// exposed here keep their defaults.
func (c *Config) PipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()

	pc.Category.MultiWordSpecificity = c.Engine.MultiWordSpecificity
	pc.Issues.TopCategories = c.Engine.TopCategories
	pc.Issues.ContextRunes = c.Engine.ContextRunes
	pc.Issues.MaxSamples = c.Engine.MaxSamples
	pc.MaxDocumentRunes = c.Engine.MaxDocumentRunes
	pc.DefaultJurisdiction = c.Engine.DefaultJurisdiction
	pc.Workers = c.Engine.Workers
	pc.EnrichTimeout = c.GetEnrichTimeout()

	pc.Merit.Floor = c.Merit.Floor
	pc.Merit.EvidenceCap = c.Merit.EvidenceCap
	pc.Merit.ClarityCap = c.Merit.ClarityCap
	pc.Merit.CompletenessCap = c.Merit.CompletenessCap
	pc.Merit.QualityCap = c.Merit.QualityCap
	pc.Merit.ClearCaseScore = c.Merit.ClearCaseScore
	pc.Merit.FewDocumentsFactor = c.Merit.FewDocumentsFactor
	pc.Merit.FewEntitiesFactor = c.Merit.FewEntitiesFactor

	pc.Ranking = recommend.Weights{
		Category:        c.Ranking.Category,
		Jurisdiction:    c.Ranking.Jurisdiction,
		Urgency:         c.Ranking.Urgency,
		SuccessRate:     c.Ranking.SuccessRate,
		LegalRefs:       c.Ranking.LegalRefs,
		PartialCategory: c.Ranking.PartialCategory,
		LowMerit:        c.Ranking.LowMerit,
	}
	return pc
}

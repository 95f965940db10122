package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdispute/case-engine/internal/pipeline"
)

// clearEnv unsets every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CASESCORE_TAXONOMY", "CASESCORE_TAXONOMY_DB", "GEMINI_API_KEY", "CASESCORE_ENRICH_ADDR", "CASESCORE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestDefaultConfigMatchesPipelineDefaults(t *testing.T) {
	got := DefaultConfig().PipelineConfig()
	want := pipeline.DefaultConfig()
	want.Workers = 0 // config default defers to the engine's CPU count

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pipeline config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "casescore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  default_jurisdiction: BC
merit:
  floor: 0.2
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BC", cfg.Engine.DefaultJurisdiction)
	assert.Equal(t, 0.2, cfg.Merit.Floor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Engine.TopCategories)
	assert.Equal(t, 0.40, cfg.Ranking.Category)

	pc := cfg.PipelineConfig()
	assert.Equal(t, "BC", pc.DefaultJurisdiction)
	assert.Equal(t, 0.2, pc.Merit.Floor)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Ranking.Urgency = 0.3
	cfg.Enrichment.Timeout = "5s"

	path := filepath.Join(t.TempDir(), "nested", "casescore.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Equal(t, 5*time.Second, got.GetEnrichTimeout())
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY enables gemini", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.Enrichment.APIKey)
		assert.Equal(t, ProviderGemini, cfg.Enrichment.Provider)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("CASESCORE_ENRICH_ADDR does not override explicit provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CASESCORE_ENRICH_ADDR", "localhost:50051")

		cfg := DefaultConfig()
		cfg.Enrichment.Provider = ProviderGemini
		cfg.applyEnvOverrides()

		assert.Equal(t, "localhost:50051", cfg.Enrichment.Address)
		assert.Equal(t, ProviderGemini, cfg.Enrichment.Provider)
	})

	t.Run("CASESCORE_ENRICH_ADDR enables grpc", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CASESCORE_ENRICH_ADDR", "localhost:50051")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderGRPC, cfg.Enrichment.Provider)
	})

	t.Run("paths and log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CASESCORE_TAXONOMY", "/etc/casescore/taxonomy.yaml")
		t.Setenv("CASESCORE_TAXONOMY_DB", "/var/lib/casescore/taxonomy.db")
		t.Setenv("CASESCORE_LOG_LEVEL", "warn")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "/etc/casescore/taxonomy.yaml", cfg.Taxonomy.Path)
		assert.Equal(t, "/var/lib/casescore/taxonomy.db", cfg.Taxonomy.DBPath)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Enrichment.Provider = "oracle" }},
		{"gemini without key", func(c *Config) { c.Enrichment.Provider = ProviderGemini }},
		{"grpc without address", func(c *Config) { c.Enrichment.Provider = ProviderGRPC }},
		{"bad timeout", func(c *Config) { c.Enrichment.Timeout = "soon" }},
		{"floor above one", func(c *Config) { c.Merit.Floor = 1.5 }},
		{"negative weight", func(c *Config) { c.Ranking.LegalRefs = -0.1 }},
		{"no categories examined", func(c *Config) { c.Engine.TopCategories = 0 }},
		{"negative workers", func(c *Config) { c.Engine.Workers = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnrichTimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enrichment.Timeout = ""
	assert.Equal(t, 20*time.Second, cfg.GetEnrichTimeout())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Analysis.ConfidenceLevel, cfg.Analysis.ConfidenceLevel)
	assert.Equal(t, 0.99, cfg.Analysis.ConfidenceLevel)
	assert.Equal(t, 0.05, cfg.Analysis.SignificanceLevel)
	assert.Len(t, cfg.Analysis.Indicators, 14)
	assert.Equal(t, "Female", cfg.Analysis.GenderLabels["0"])
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: /data/survey
analysis:
  confidence_level: 0.95
  indicators: [Optm, Cheer]
output:
  charts: false
cache:
  ttl: 90m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/survey", cfg.Data.Dir)
	assert.Equal(t, 0.95, cfg.Analysis.ConfidenceLevel)
	// Unset keys keep their defaults.
	assert.Equal(t, 0.05, cfg.Analysis.SignificanceLevel)
	assert.Equal(t, []string{"Optm", "Cheer"}, cfg.Analysis.Indicators)
	assert.False(t, cfg.Output.Charts)
	assert.True(t, cfg.Output.Assignments)
	assert.Equal(t, 90*time.Minute, cfg.GetCacheTTL())

	demo, screen, wb := cfg.DatasetPaths()
	assert.Equal(t, filepath.Join("/data/survey", "dataset1.csv"), demo)
	assert.Equal(t, filepath.Join("/data/survey", "dataset2.csv"), screen)
	assert.Equal(t, filepath.Join("/data/survey", "dataset3.csv"), wb)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.yaml")
	cfg := DefaultConfig()
	cfg.Data.ConfigMap = "survey-data"
	cfg.Analysis.TrimProportion = 0.1
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SURVEY_DATASET_DIR", "/env/data")
	t.Setenv("SURVEY_REDIS_ADDR", "redis:6379")
	t.Setenv("SURVEY_OUTPUT_DIR", "/env/out")
	t.Setenv("SURVEY_METRICS_FILE", "/env/metrics.prom")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/data", cfg.Data.Dir)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "/env/out", cfg.Output.Dir)
	assert.Equal(t, "/env/metrics.prom", cfg.Metrics.Textfile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence level", func(c *Config) { c.Analysis.ConfidenceLevel = 1.2 }},
		{"alpha", func(c *Config) { c.Analysis.SignificanceLevel = 0 }},
		{"trim", func(c *Config) { c.Analysis.TrimProportion = 0.6 }},
		{"no indicators", func(c *Config) { c.Analysis.Indicators = nil }},
		{"inverted scale", func(c *Config) { c.Validation.ScaleMin = 6 }},
		{"ttl", func(c *Config) { c.Cache.TTL = "soon" }},
		{"configmap namespace", func(c *Config) { c.Data.ConfigMap = "x"; c.Data.Namespace = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

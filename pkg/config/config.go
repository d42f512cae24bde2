// Package config holds the YAML configuration of the survey report.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/screentime-wellbeing/evaluation"
	"github.com/example/screentime-wellbeing/pkg/survey"
)

// Config is the root configuration.
type Config struct {
	Data       DataConfig                   `yaml:"data"`
	Analysis   evaluation.StatisticalConfig `yaml:"analysis"`
	Validation ValidationConfig             `yaml:"validation"`
	Output     OutputConfig                 `yaml:"output"`
	Cache      CacheConfig                  `yaml:"cache"`
	Metrics    MetricsConfig                `yaml:"metrics"`
}

// DataConfig locates the three input datasets. A ConfigMap name takes
// precedence over the file paths.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	Demographics string `yaml:"demographics"`
	ScreenTime   string `yaml:"screen_time"`
	WellBeing    string `yaml:"well_being"`

	ConfigMap string `yaml:"configmap"`
	Namespace string `yaml:"namespace"`
}

// ValidationConfig controls the range check run after loading.
type ValidationConfig struct {
	Enabled  bool    `yaml:"enabled"`
	ScaleMin float64 `yaml:"scale_min"`
	ScaleMax float64 `yaml:"scale_max"`
}

// OutputConfig controls what a run writes besides console tables.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	Charts      bool   `yaml:"charts"`
	Assignments bool   `yaml:"assignments"`
	Artifacts   bool   `yaml:"artifacts"`
}

// CacheConfig configures the Redis result cache; an empty address keeps
// results in memory for the run only.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

// MetricsConfig configures the Prometheus textfile and HTTP listener.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
	Listen   string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:       ".",
			Namespace: "default",
		},
		Analysis: evaluation.DefaultStatisticalConfig(),
		Validation: ValidationConfig{
			Enabled:  true,
			ScaleMin: 1,
			ScaleMax: 5,
		},
		Output: OutputConfig{
			Dir:         "out",
			Charts:      true,
			Assignments: true,
			Artifacts:   true,
		},
		Cache: CacheConfig{
			TTL: "24h",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
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
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("SURVEY_DATASET_DIR"); dir != "" {
		c.Data.Dir = dir
	}
	if addr := os.Getenv("SURVEY_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if dir := os.Getenv("SURVEY_OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if path := os.Getenv("SURVEY_METRICS_FILE"); path != "" {
		c.Metrics.Textfile = path
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("invalid analysis config: %w", err)
	}
	if len(c.Analysis.Indicators) == 0 {
		return fmt.Errorf("invalid analysis config: no indicators")
	}
	if c.Validation.Enabled && c.Validation.ScaleMin > c.Validation.ScaleMax {
		return fmt.Errorf("invalid validation scale [%v, %v]", c.Validation.ScaleMin, c.Validation.ScaleMax)
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
		}
	}
	if c.Data.ConfigMap != "" && c.Data.Namespace == "" {
		return fmt.Errorf("configmap %q needs a namespace", c.Data.ConfigMap)
	}
	return nil
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return evaluation.DefaultCacheTTL
	}
	return d
}

// DatasetPaths resolves the three dataset files. Explicit paths win over
// the canonical names inside Dir.
func (c *Config) DatasetPaths() (demographics, screenTime, wellBeing string) {
	resolve := func(explicit, name string) string {
		if explicit != "" {
			return explicit
		}
		return filepath.Join(c.Data.Dir, name)
	}
	return resolve(c.Data.Demographics, survey.DemographicsDataset),
		resolve(c.Data.ScreenTime, survey.ScreenTimeDataset),
		resolve(c.Data.WellBeing, survey.WellBeingDataset)
}

// SurveyValidation converts the validation section for survey.Validate.
func (c *Config) SurveyValidation() survey.ValidationOptions {
	opts := survey.DefaultValidationOptions()
	opts.ScaleMin = c.Validation.ScaleMin
	opts.ScaleMax = c.Validation.ScaleMax
	return opts
}

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the docdrift.yaml configuration.
type Config struct {
	Repo       string           `yaml:"repo"`
	Ignore     []string         `yaml:"ignore"`
	Analyzers  []string         `yaml:"analyzers"`
	Renderers  []string         `yaml:"renderers"`
	Options    Options          `yaml:",inline"`
	Quality    QualityConfig    `yaml:"quality"`
	Validation ValidationConfig `yaml:"validation"`
	Output     OutputConfig     `yaml:"output"`
}

// Options is the configuration surface of a single analysis run.
type Options struct {
	Limits                Limits `yaml:"limits"`
	DocumentationPriority bool   `yaml:"documentation_priority"`
	ValidateClaims        bool   `yaml:"validate_claims"`
	StrictValidation      bool   `yaml:"strict_validation"`
	AllowLargeRepo        bool   `yaml:"allow_large_repo"`
}

// Limits bounds the resources a run may consume.
type Limits struct {
	MaxFileSizeMB   int `yaml:"max_file_size_mb" validate:"gte=1,lte=1024"`
	MaxRepoSizeGB   int `yaml:"max_repo_size_gb" validate:"gte=1,lte=1024"`
	TimeoutMinutes  int `yaml:"timeout_minutes" validate:"gte=1,lte=1440"`
	ParallelWorkers int `yaml:"parallel_workers" validate:"gte=1,lte=64"`
}

// QualityConfig tunes the quality sub-analyzer.
type QualityConfig struct {
	MinDuplicateLines int `yaml:"min_duplicate_lines" validate:"gte=2"`
}

// ValidationConfig tunes the validation engine.
type ValidationConfig struct {
	MatchThreshold float64 `yaml:"match_threshold" validate:"gt=0,lte=1"`
}

// OutputConfig controls where and how output artifacts are generated.
type OutputConfig struct {
	Dir             string `yaml:"dir"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo: ".",
		Ignore: []string{
			"vendor/**",
			"node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			"target/**",
			"__pycache__/**",
			".venv/**",
			"venv/**",
			".docdrift/**",
			"**/*.min.js",
			"**/*.lock",
		},
		Analyzers: []string{"structure", "dependency", "pattern", "quality", "security", "observability"},
		Renderers: []string{"review_prompts", "json_export"},
		Options:   DefaultOptions(),
		Quality: QualityConfig{
			MinDuplicateLines: 6,
		},
		Validation: ValidationConfig{
			MatchThreshold: 0.8,
		},
		Output: OutputConfig{
			Dir:             ".docdrift",
			MaxPromptTokens: 24000,
		},
	}
}

// DefaultOptions returns the default run options.
func DefaultOptions() Options {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return Options{
		Limits: Limits{
			MaxFileSizeMB:   10,
			MaxRepoSizeGB:   2,
			TimeoutMinutes:  10,
			ParallelWorkers: workers,
		},
		DocumentationPriority: true,
		ValidateClaims:        true,
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = ".docdrift"
	}
	if cfg.Output.MaxPromptTokens == 0 {
		cfg.Output.MaxPromptTokens = 24000
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the config against its declared constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// Validate checks the options against their declared constraints.
func (o Options) Validate() error {
	return validate.Struct(o)
}

// Timeout returns the global run deadline.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.Limits.TimeoutMinutes) * time.Minute
}

// MaxFileSize returns the per-file size limit in bytes.
func (o Options) MaxFileSize() int64 {
	return int64(o.Limits.MaxFileSizeMB) << 20
}

// MaxRepoSize returns the total repository size limit in bytes.
func (o Options) MaxRepoSize() int64 {
	return int64(o.Limits.MaxRepoSizeGB) << 30
}

// IsAnalyzerEnabled returns true if the named sub-analyzer is enabled.
// An empty list enables every sub-analyzer.
func (c *Config) IsAnalyzerEnabled(name string) bool {
	return len(c.Analyzers) == 0 || contains(c.Analyzers, name)
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return contains(c.Renderers, name)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

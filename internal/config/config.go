// Package config holds operator-facing settings: sketching and analysis
// defaults that seed the CLI flags. Settings load from an optional YAML file
// and can be overridden through YACHT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all yacht settings.
type Config struct {
	// Sketching
	Ksize int    `yaml:"ksize"`
	Scale uint64 `yaml:"scale"`

	// Training
	AniThresh float64 `yaml:"ani_thresh"`

	// Recovery
	Significance    float64   `yaml:"significance"`
	MinCoverageList []float64 `yaml:"min_coverage_list"`
	OutFilename     string    `yaml:"out_filename"`

	// Execution
	NumThreads int `yaml:"num_threads"`
}

// DefaultConfig returns the shipped defaults, matching the original tool's
// argument defaults.
func DefaultConfig() Config {
	return Config{
		Ksize:           31,
		Scale:           1000,
		AniThresh:       0.95,
		Significance:    0.99,
		MinCoverageList: []float64{1, 0.5, 0.1, 0.05, 0.01},
		OutFilename:     "result.xlsx",
		NumThreads:      16,
	}
}

// Load reads settings from path when it exists, otherwise returns defaults.
// Environment overrides apply in both cases.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the settings as YAML.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides folds YACHT_* environment variables into the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("YACHT_KSIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ksize = n
		}
	}
	if v := os.Getenv("YACHT_SCALE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Scale = n
		}
	}
	if v := os.Getenv("YACHT_ANI_THRESH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AniThresh = f
		}
	}
	if v := os.Getenv("YACHT_SIGNIFICANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Significance = f
		}
	}
	if v := os.Getenv("YACHT_NUM_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumThreads = n
		}
	}
}

// Validate rejects settings no stage can run with.
func (c Config) Validate() error {
	if c.Ksize <= 0 {
		return fmt.Errorf("ksize must be positive, got %d", c.Ksize)
	}
	if c.Scale == 0 {
		return fmt.Errorf("scale must be positive")
	}
	if c.AniThresh <= 0 || c.AniThresh > 1 {
		return fmt.Errorf("ani_thresh %v is not in (0, 1]", c.AniThresh)
	}
	if c.Significance <= 0 || c.Significance >= 1 {
		return fmt.Errorf("significance %v is not in (0, 1)", c.Significance)
	}
	if c.NumThreads <= 0 {
		return fmt.Errorf("num_threads must be positive, got %d", c.NumThreads)
	}
	for _, mc := range c.MinCoverageList {
		if mc < 0 || mc > 1 {
			return fmt.Errorf("min_coverage %v is not between 0 and 1", mc)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/render"
)

// Dir is the name of the configuration directory, both per project and per user.
const Dir = ".glv"

// Config holds all configuration for glv
type Config struct {
	// Analysis settings
	Order         string `yaml:"order" env:"GLV_ORDER"`
	Strategy      string `yaml:"strategy" env:"GLV_STRATEGY"`
	MaxIterations int    `yaml:"max_iterations" env:"GLV_MAX_ITERATIONS"`

	// Output settings
	Format   string `yaml:"format" env:"GLV_FORMAT"`
	ShowLive bool   `yaml:"show_live" env:"GLV_SHOW_LIVE"`

	// Extension of source files picked up by batch runs
	Extension string `yaml:"extension" env:"GLV_EXTENSION"`

	// Report cache
	CacheDir  string `yaml:"cache_dir" env:"GLV_CACHE_DIR"`
	CacheSize int    `yaml:"cache_size" env:"GLV_CACHE_SIZE"`

	// Number of files analyzed in parallel by batch runs
	Workers int `yaml:"workers" env:"GLV_WORKERS"`

	// Logging
	Verbose  bool `yaml:"verbose" env:"GLV_VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"GLV_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Order:         string(cfg.OrderReverse),
		Strategy:      string(cfg.StrategyRoundRobin),
		MaxIterations: 0,
		Format:        string(render.FormatText),
		ShowLive:      false,
		Extension:     ".wl",
		CacheDir:      filepath.Join(Dir, "cache"),
		CacheSize:     256,
		Workers:       4,
		Verbose:       false,
		JSONLogs:      false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.glv/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(Dir, "config.yaml")
	}
	return filepath.Join(home, Dir, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.glv/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(Dir, "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.glv/config.yaml)
// 2. Environment variables
// 3. Global config (~/.glv/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	c := DefaultConfig()

	globalPath := GlobalConfigFilePath()
	if err := mergeFile(c, globalPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(c)

	projectPath := ProjectConfigFilePath()
	if err := mergeFile(c, projectPath); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
// Environment variables override the file.
func LoadFromFile(path string) (*Config, error) {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(c)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// mergeFile overlays the YAML file at path onto c. A missing file is skipped.
func mergeFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("GLV_ORDER"); v != "" {
		c.Order = v
	}
	if v := os.Getenv("GLV_STRATEGY"); v != "" {
		c.Strategy = v
	}
	if v := os.Getenv("GLV_MAX_ITERATIONS"); v != "" {
		if i := parseInt(v); i >= 0 {
			c.MaxIterations = i
		}
	}
	if v := os.Getenv("GLV_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("GLV_SHOW_LIVE"); v != "" {
		c.ShowLive = parseBool(v)
	}
	if v := os.Getenv("GLV_EXTENSION"); v != "" {
		c.Extension = v
	}
	if v := os.Getenv("GLV_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("GLV_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			c.CacheSize = i
		}
	}
	if v := os.Getenv("GLV_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			c.Workers = i
		}
	}
	if v := os.Getenv("GLV_VERBOSE"); v != "" {
		c.Verbose = parseBool(v)
	}
	if v := os.Getenv("GLV_JSON_LOGS"); v != "" {
		c.JSONLogs = parseBool(v)
	}
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if _, err := cfg.ParseOrder(c.Order); err != nil {
		return err
	}
	if _, err := cfg.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}
	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return fmt.Errorf("extension must start with '.': %q", c.Extension)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// AnalyzeOptions converts the analysis settings into options for Analyze.
// The config must have been validated.
func (c *Config) AnalyzeOptions() []cfg.AnalyzeOption {
	order, _ := cfg.ParseOrder(c.Order)
	strategy, _ := cfg.ParseStrategy(c.Strategy)
	return []cfg.AnalyzeOption{
		cfg.WithOrder(order),
		cfg.WithStrategy(strategy),
		cfg.WithMaxIterations(c.MaxIterations),
	}
}

// parseInt attempts to parse a string as int, returning -1 on failure
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return -1
	}
	return i
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

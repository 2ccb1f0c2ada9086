package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for carch
type Config struct {
	// Algorithm selects the module partitioning strategy:
	// "community" (Louvain modularity) or "components" (connected components)
	Algorithm string `yaml:"algorithm" env:"CARCH_ALGORITHM"`

	// HeapAllocators are exact function names treated as allocators.
	// Empty means the built-in C allocator set.
	HeapAllocators []string `yaml:"heap_allocators" env:"CARCH_HEAP_ALLOCATORS"`

	// HeapPatterns are case-insensitive substrings that mark a callee as an
	// allocator. Empty means the built-in pattern set.
	HeapPatterns []string `yaml:"heap_patterns" env:"CARCH_HEAP_PATTERNS"`

	// AggregateHeuristic enables the struct-member heap classification pass
	AggregateHeuristic bool `yaml:"aggregate_heuristic" env:"CARCH_AGGREGATE_HEURISTIC"`

	// RulesFile is the path to the business-module classifier rules YAML.
	// Empty disables business-logic grouping.
	RulesFile string `yaml:"rules_file" env:"CARCH_RULES_FILE"`

	// Output is the default path for the exported analysis document
	Output string `yaml:"output" env:"CARCH_OUTPUT"`

	// Fact cache settings
	CacheEnabled    bool   `yaml:"cache_enabled" env:"CARCH_CACHE_ENABLED"`
	CachePath       string `yaml:"cache_path" env:"CARCH_CACHE_PATH"`
	CacheMaxEntries int    `yaml:"cache_max_entries" env:"CARCH_CACHE_MAX_ENTRIES"`

	// Logging
	Verbose bool `yaml:"verbose" env:"CARCH_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:          "community",
		HeapAllocators:     nil,
		HeapPatterns:       nil,
		AggregateHeuristic: true,
		RulesFile:          "",
		Output:             "carch.json",
		CacheEnabled:       true,
		CachePath:          ".carch/facts.cache",
		CacheMaxEntries:    4096,
		Verbose:            false,
	}
}

// globalConfigFilePath returns the global config file path (~/.carch/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carch/config.yaml"
	}
	return filepath.Join(home, ".carch", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.carch/config.yaml)
func projectConfigFilePath() string {
	return ".carch/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.carch/config.yaml)
// 3. Global config (~/.carch/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
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
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARCH_ALGORITHM"); v != "" {
		cfg.Algorithm = v
	}
	if v := os.Getenv("CARCH_HEAP_ALLOCATORS"); v != "" {
		cfg.HeapAllocators = splitList(v)
	}
	if v := os.Getenv("CARCH_HEAP_PATTERNS"); v != "" {
		cfg.HeapPatterns = splitList(v)
	}
	if v := os.Getenv("CARCH_AGGREGATE_HEURISTIC"); v != "" {
		cfg.AggregateHeuristic = parseBool(v)
	}
	if v := os.Getenv("CARCH_RULES_FILE"); v != "" {
		cfg.RulesFile = v
	}
	if v := os.Getenv("CARCH_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("CARCH_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("CARCH_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("CARCH_CACHE_MAX_ENTRIES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheMaxEntries = i
		}
	}
	if v := os.Getenv("CARCH_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Algorithm {
	case "community", "components":
		// Valid
	default:
		return fmt.Errorf("invalid algorithm: %s (must be 'community' or 'components')", c.Algorithm)
	}

	if c.Output == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must be non-negative")
	}
	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("rules_file %s: %w", c.RulesFile, err)
		}
	}

	return nil
}

// splitList splits a comma-separated env value into trimmed entries
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseBool interprets the truthy env spellings
func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Algorithm", cfg.Algorithm, "community"},
		{"AggregateHeuristic", cfg.AggregateHeuristic, true},
		{"RulesFile", cfg.RulesFile, ""},
		{"Output", cfg.Output, "carch.json"},
		{"CacheEnabled", cfg.CacheEnabled, true},
		{"CachePath", cfg.CachePath, ".carch/facts.cache"},
		{"CacheMaxEntries", cfg.CacheMaxEntries, 4096},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.HeapAllocators != nil {
		t.Errorf("HeapAllocators = %v, want nil (built-in set)", cfg.HeapAllocators)
	}
	if cfg.HeapPatterns != nil {
		t.Errorf("HeapPatterns = %v, want nil (built-in set)", cfg.HeapPatterns)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "components algorithm",
			mutate:  func(c *Config) { c.Algorithm = "components" },
			wantErr: false,
		},
		{
			name:    "unknown algorithm",
			mutate:  func(c *Config) { c.Algorithm = "kmeans" },
			wantErr: true,
		},
		{
			name:    "empty output",
			mutate:  func(c *Config) { c.Output = "" },
			wantErr: true,
		},
		{
			name:    "negative cache size",
			mutate:  func(c *Config) { c.CacheMaxEntries = -1 },
			wantErr: true,
		},
		{
			name:    "missing rules file",
			mutate:  func(c *Config) { c.RulesFile = "/nonexistent/rules.yaml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRulesFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("- pattern: x\n  module: m\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.RulesFile = path
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with existing rules file failed: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `algorithm: components
output: report.json
cache_enabled: false
heap_allocators:
  - xmalloc
  - pool_get
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Algorithm != "components" {
		t.Errorf("Algorithm = %q, want components", cfg.Algorithm)
	}
	if cfg.Output != "report.json" {
		t.Errorf("Output = %q, want report.json", cfg.Output)
	}
	if cfg.CacheEnabled {
		t.Error("CacheEnabled should be false")
	}
	if !reflect.DeepEqual(cfg.HeapAllocators, []string{"xmalloc", "pool_get"}) {
		t.Errorf("HeapAllocators = %v", cfg.HeapAllocators)
	}
	// Unset fields keep their defaults.
	if cfg.CacheMaxEntries != 4096 {
		t.Errorf("CacheMaxEntries = %d, want default 4096", cfg.CacheMaxEntries)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CARCH_ALGORITHM", "components")
	t.Setenv("CARCH_HEAP_PATTERNS", "alloc, pool ,grab")
	t.Setenv("CARCH_CACHE_ENABLED", "no")
	t.Setenv("CARCH_CACHE_MAX_ENTRIES", "128")
	t.Setenv("CARCH_VERBOSE", "1")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Algorithm != "components" {
		t.Errorf("Algorithm = %q, want components", cfg.Algorithm)
	}
	if !reflect.DeepEqual(cfg.HeapPatterns, []string{"alloc", "pool", "grab"}) {
		t.Errorf("HeapPatterns = %v", cfg.HeapPatterns)
	}
	if cfg.CacheEnabled {
		t.Error("CacheEnabled should be false")
	}
	if cfg.CacheMaxEntries != 128 {
		t.Errorf("CacheMaxEntries = %d, want 128", cfg.CacheMaxEntries)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Algorithm = "components"
	cfg.Output = "saved.json"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() after Save failed: %v", err)
	}
	if loaded.Algorithm != "components" || loaded.Output != "saved.json" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}

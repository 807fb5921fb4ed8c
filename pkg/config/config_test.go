package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MinMatchScore != 0.8 {
		t.Errorf("default min_match_score = %v, want 0.8", cfg.MinMatchScore)
	}
	if time.Duration(cfg.EstimatorTimeout) != 30*time.Second {
		t.Errorf("default estimator_timeout = %v", time.Duration(cfg.EstimatorTimeout))
	}
	if cfg.CacheRoot == "" {
		t.Error("default cache_root is empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinpoint.yaml")
	raw := `min_match_score: 0.92
estimator_timeout: 5s
cache_root: /tmp/elements
model: gpt-4o
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinMatchScore != 0.92 {
		t.Errorf("min_match_score = %v", cfg.MinMatchScore)
	}
	if time.Duration(cfg.EstimatorTimeout) != 5*time.Second {
		t.Errorf("estimator_timeout = %v", time.Duration(cfg.EstimatorTimeout))
	}
	if cfg.CacheRoot != "/tmp/elements" {
		t.Errorf("cache_root = %q", cfg.CacheRoot)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Model)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"score above one", "min_match_score: 1.2\ncache_root: /tmp/x"},
		{"bad duration", "estimator_timeout: soon\ncache_root: /tmp/x"},
		{"empty cache root", "cache_root: \"\""},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pinpoint.yaml")
			if err := os.WriteFile(path, []byte(tt.raw), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

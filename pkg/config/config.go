// Package config holds the small configuration surface of the element
// resolution engine, loadable from a YAML file with sensible defaults for
// everything left unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can say "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the recognized option set.
type Config struct {
	// MinMatchScore is the threshold in [0,1] below which template matches
	// are discarded.
	MinMatchScore float64 `yaml:"min_match_score"`
	// EstimatorTimeout bounds each vision oracle call.
	EstimatorTimeout Duration `yaml:"estimator_timeout"`
	// CacheRoot is the directory holding the element index and template
	// artifacts.
	CacheRoot string `yaml:"cache_root"`
	// Model overrides the vision model; empty uses the provider default.
	Model string `yaml:"model"`
	// BaseURL points at an OpenAI-compatible endpoint; empty uses the
	// public API.
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cacheRoot := "elements"
	if home, err := os.UserHomeDir(); err == nil {
		cacheRoot = filepath.Join(home, ".pinpoint", "elements")
	}
	return Config{
		MinMatchScore:    0.8,
		EstimatorTimeout: Duration(30 * time.Second),
		CacheRoot:        cacheRoot,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot work with.
func (c Config) Validate() error {
	if c.MinMatchScore < 0 || c.MinMatchScore > 1 {
		return fmt.Errorf("config: min_match_score %v outside [0,1]", c.MinMatchScore)
	}
	if c.EstimatorTimeout < 0 {
		return fmt.Errorf("config: negative estimator_timeout %v", time.Duration(c.EstimatorTimeout))
	}
	if c.CacheRoot == "" {
		return errors.New("config: cache_root is required")
	}
	return nil
}

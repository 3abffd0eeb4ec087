// Package userconfig provides user-level configuration for gencommit.
// This configuration is stored in ~/.config/gencommit/config.yaml and holds
// the preferred provider and model along with a few behavior switches.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/docker/go-units"
	"github.com/goccy/go-yaml"

	"github.com/gencommit/gencommit/pkg/paths"
)

// CurrentVersion is the current version of the user config format
const CurrentVersion = "v1"

var knownProviders = []string{"google", "openai"}

// Config represents the user-level gencommit configuration
type Config struct {
	// Version is the config format version
	Version string `yaml:"version,omitempty"`
	// Provider is the default provider type ("google" or "openai")
	Provider string `yaml:"provider,omitempty"`
	// Model is the default model name for the provider
	Model string `yaml:"model,omitempty"`
	// BaseURL points the provider at a compatible endpoint
	BaseURL string `yaml:"base_url,omitempty"`
	// Emoji prefixes conventional commit headers with a gitmoji
	Emoji bool `yaml:"emoji,omitempty"`
	// MaxDiffSize caps the diff sent to the model, e.g. "100KB" (binary units)
	MaxDiffSize string `yaml:"max_diff_size,omitempty"`
	// EnforceMinuteLimits toggles the RPM and TPM checks. Unset means enabled.
	EnforceMinuteLimits *bool `yaml:"enforce_minute_limits,omitempty"`
	// MaxTokens caps the generated message length. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens,omitempty"`
	// Temperature is the sampling temperature, between 0 and 2
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// Path returns the path to the config file
func Path() string {
	return filepath.Join(paths.GetConfigDir(), "config.yaml")
}

// Load loads the user configuration. A missing file is an empty config.
func Load() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the values that cannot be caught by the YAML decoder.
func (c *Config) Validate() error {
	if c.Version != "" && c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %q, expected %q", c.Version, CurrentVersion)
	}
	if c.Provider != "" && !slices.Contains(knownProviders, c.Provider) {
		return fmt.Errorf("unknown provider %q, expected one of %v", c.Provider, knownProviders)
	}
	if _, err := c.MaxDiffBytes(); err != nil {
		return err
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("invalid max_tokens %d: must not be negative", c.MaxTokens)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("invalid temperature %v: must be between 0 and 2", *c.Temperature)
	}
	return nil
}

// MaxDiffBytes parses MaxDiffSize. It returns 0 when unset.
func (c *Config) MaxDiffBytes() (int, error) {
	if c == nil || c.MaxDiffSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(c.MaxDiffSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_diff_size: %w", err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("invalid max_diff_size %q: must be positive", c.MaxDiffSize)
	}
	return int(size), nil
}

// MinuteLimitsEnforced reports whether RPM and TPM are checked.
func (c *Config) MinuteLimitsEnforced() bool {
	if c == nil || c.EnforceMinuteLimits == nil {
		return true
	}
	return *c.EnforceMinuteLimits
}

package base

import (
	"github.com/gencommit/gencommit/pkg/env"
)

// ModelConfig selects and tunes the model used for generation.
type ModelConfig struct {
	// Provider is "google" or "openai".
	Provider string
	Model    string
	// BaseURL overrides the provider endpoint, for proxies and compatible servers.
	BaseURL     string
	MaxTokens   int
	Temperature *float64
}

// Config is shared by all provider clients.
type Config struct {
	ModelConfig ModelConfig
	Env         env.Provider
}

// ID returns the provider and model ID in the format "provider/model"
func (c *Config) ID() string {
	return c.ModelConfig.Provider + "/" + c.ModelConfig.Model
}

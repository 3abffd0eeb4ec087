package provider

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"

	"github.com/gencommit/gencommit/pkg/chat"
	"github.com/gencommit/gencommit/pkg/env"
	"github.com/gencommit/gencommit/pkg/model/provider/base"
	"github.com/gencommit/gencommit/pkg/model/provider/gemini"
	"github.com/gencommit/gencommit/pkg/model/provider/openai"
)

const (
	DefaultProvider = "google"
	DefaultModel    = "gemini-2.0-flash"
)

// defaultModels maps providers to the model used when none is configured.
var defaultModels = map[string]string{
	"google": DefaultModel,
	"openai": "gpt-4o-mini",
}

// Provider defines the interface for model providers
type Provider interface {
	// ID returns "provider/model".
	ID() string
	// CreateChatCompletion sends messages and waits for the full answer.
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (*chat.Response, error)
}

// WithDefaults fills the provider and model when they are empty.
func WithDefaults(cfg base.ModelConfig) base.ModelConfig {
	cfg.Provider = cmp.Or(cfg.Provider, DefaultProvider)
	cfg.Model = cmp.Or(cfg.Model, defaultModels[cfg.Provider])
	return cfg
}

// New creates the provider described by cfg.
func New(ctx context.Context, cfg base.ModelConfig, envProvider env.Provider) (Provider, error) {
	cfg = WithDefaults(cfg)

	slog.Debug("Creating model provider", "provider", cfg.Provider, "model", cfg.Model)

	switch cfg.Provider {
	case "google":
		return gemini.NewClient(ctx, &cfg, envProvider)
	case "openai":
		return openai.NewClient(ctx, &cfg, envProvider)
	default:
		slog.Error("Unknown provider type", "provider", cfg.Provider)
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

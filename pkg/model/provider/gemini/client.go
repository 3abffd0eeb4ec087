package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/gencommit/gencommit/pkg/chat"
	"github.com/gencommit/gencommit/pkg/env"
	"github.com/gencommit/gencommit/pkg/httpclient"
	"github.com/gencommit/gencommit/pkg/model/provider/base"
)

// APIKeyEnvVars are checked in order for the Gemini API key.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Client represents a Gemini client wrapper
// It implements the provider.Provider interface
type Client struct {
	base.Config
	client *genai.Client
}

// NewClient creates a new Gemini client from the provided configuration
func NewClient(ctx context.Context, cfg *base.ModelConfig, envProvider env.Provider) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}

	if cfg.Provider != "google" {
		return nil, errors.New("model type must be 'google'")
	}

	apiKey, err := env.FirstOf(ctx, envProvider, APIKeyEnvVars...)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpclient.NewHTTPClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	slog.Debug("Gemini client created successfully", "model", cfg.Model)

	return &Client{
		Config: base.Config{
			ModelConfig: *cfg,
			Env:         envProvider,
		},
		client: client,
	}, nil
}

// convertMessages splits system messages into the system instruction and
// maps the remaining turns to Gemini contents.
func convertMessages(messages []chat.Message) (*genai.Content, []*genai.Content) {
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case chat.MessageRoleSystem:
			system = append(system, genai.NewPartFromText(msg.Content))
		case chat.MessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromParts(system, genai.RoleUser), contents
}

func (c *Client) buildConfig(systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}

	if c.ModelConfig.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.ModelConfig.MaxTokens)
	}
	if c.ModelConfig.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*c.ModelConfig.Temperature))
	}

	return config
}

func convertUsage(metadata *genai.GenerateContentResponseUsageMetadata) *chat.Usage {
	if metadata == nil {
		return nil
	}
	return &chat.Usage{
		InputTokens:  int64(metadata.PromptTokenCount),
		OutputTokens: int64(metadata.CandidatesTokenCount),
		TotalTokens:  int64(metadata.TotalTokenCount),
	}
}

// CreateChatCompletion sends messages in a single, non-streamed request.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (*chat.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	systemInstruction, contents := convertMessages(messages)
	if len(contents) == 0 {
		return nil, errors.New("at least one non-system message is required")
	}

	slog.Debug("Gemini request", "model", c.ModelConfig.Model, "messages", len(contents))

	resp, err := c.client.Models.GenerateContent(ctx, c.ModelConfig.Model, contents, c.buildConfig(systemInstruction))
	if err != nil {
		slog.Error("Gemini request failed", "model", c.ModelConfig.Model, "error", err)
		return nil, err
	}

	response := &chat.Response{
		Content: resp.Text(),
		Model:   c.ModelConfig.Model,
		Usage:   convertUsage(resp.UsageMetadata),
	}
	if resp.ModelVersion != "" {
		response.Model = resp.ModelVersion
	}

	slog.Debug("Gemini response", "model", response.Model, "total_tokens", response.TotalTokens())
	return response, nil
}

package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/gencommit/gencommit/pkg/chat"
	"github.com/gencommit/gencommit/pkg/env"
	"github.com/gencommit/gencommit/pkg/httpclient"
	"github.com/gencommit/gencommit/pkg/model/provider/base"
)

// APIKeyEnvVar holds the OpenAI API key.
const APIKeyEnvVar = "OPENAI_API_KEY"

// Client represents an OpenAI client wrapper
// It implements the provider.Provider interface
type Client struct {
	base.Config
	client *openai.Client
}

// NewClient creates a new OpenAI client from the provided configuration.
// BaseURL may point at any OpenAI-compatible server.
func NewClient(ctx context.Context, cfg *base.ModelConfig, envProvider env.Provider) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}

	if cfg.Provider != "openai" {
		return nil, errors.New("model type must be 'openai'")
	}

	apiKey, err := env.FirstOf(ctx, envProvider, APIKeyEnvVar)
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpclient.NewHTTPClient()

	slog.Debug("OpenAI client created successfully", "model", cfg.Model, "base_url", clientConfig.BaseURL)

	return &Client{
		Config: base.Config{
			ModelConfig: *cfg,
			Env:         envProvider,
		},
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return openaiMessages
}

func (c *Client) buildRequest(messages []chat.Message) openai.ChatCompletionRequest {
	request := openai.ChatCompletionRequest{
		Model:    c.ModelConfig.Model,
		Messages: convertMessages(messages),
	}
	if c.ModelConfig.MaxTokens > 0 {
		request.MaxTokens = c.ModelConfig.MaxTokens
	}
	if c.ModelConfig.Temperature != nil {
		request.Temperature = float32(*c.ModelConfig.Temperature)
	}
	return request
}

func convertUsage(usage openai.Usage) *chat.Usage {
	if usage.TotalTokens == 0 && usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return nil
	}
	return &chat.Usage{
		InputTokens:  int64(usage.PromptTokens),
		OutputTokens: int64(usage.CompletionTokens),
		TotalTokens:  int64(usage.TotalTokens),
	}
}

// CreateChatCompletion sends messages in a single, non-streamed request.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (*chat.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages))
	if err != nil {
		slog.Error("OpenAI request failed", "model", c.ModelConfig.Model, "error", err)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	response := &chat.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   c.ModelConfig.Model,
		Usage:   convertUsage(resp.Usage),
	}
	if resp.Model != "" {
		response.Model = resp.Model
	}

	slog.Debug("OpenAI response", "model", response.Model, "total_tokens", response.TotalTokens())
	return response, nil
}

// Package commitmsg generates commit messages from a staged diff using a
// one-shot LLM call.
package commitmsg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gencommit/gencommit/pkg/chat"
)

const (
	systemPrompt = "You are an expert software engineer who writes git commit messages following the Conventional Commits specification. You only ever answer with the commit message itself, never with explanations, markdown or code fences."

	userPromptFormat = `Write a commit message for the staged changes below.

Rules:
- First line: <type>(<optional scope>): <summary>, at most 72 characters, imperative mood, no trailing period.
- <type> is one of: feat, fix, docs, style, refactor, perf, test, build, ci, chore, revert.
- If the change needs more context, add a blank line and a short body wrapped at 72 characters.
- Describe what changed and why, not how.

Staged diff:
%s
`
)

var (
	// ErrGeneration matches any *GenerationError.
	ErrGeneration = errors.New("commit message generation failed")
	// ErrEmptyMessage is returned when the model answers with nothing usable.
	ErrEmptyMessage = errors.New("model returned an empty commit message")
	// ErrEmptyDiff is returned when there is nothing to describe.
	ErrEmptyDiff = errors.New("diff is empty")
)

// GenerationError wraps any failure of the model call. It is never a quota event.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating commit message with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Model is the subset of provider.Provider the generator needs.
type Model interface {
	ID() string
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (*chat.Response, error)
}

// Result is a generated message and the tokens it cost.
type Result struct {
	Message string
	// TokensUsed is 0 when the provider did not report usage.
	TokensUsed int64
	Model      string
}

// Generator produces commit messages.
type Generator struct {
	model Model
	emoji bool
}

type Opt func(*Generator)

// WithEmoji prefixes messages with the gitmoji matching their type.
func WithEmoji(enabled bool) Opt {
	return func(g *Generator) {
		g.emoji = enabled
	}
}

// New creates a Generator that uses model.
func New(model Model, opts ...Opt) *Generator {
	g := &Generator{model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Messages builds the prompt sent for diff.
func Messages(diff string) []chat.Message {
	return []chat.Message{
		{
			Role:    chat.MessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    chat.MessageRoleUser,
			Content: fmt.Sprintf(userPromptFormat, diff),
		},
	}
}

// Generate asks the model for a commit message describing diff.
// Every model failure is returned as a *GenerationError.
func (g *Generator) Generate(ctx context.Context, diff string) (*Result, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, ErrEmptyDiff
	}

	id := g.model.ID()
	slog.Debug("Generating commit message", "model", id, "diff_bytes", len(diff))

	response, err := g.model.CreateChatCompletion(ctx, Messages(diff))
	if err != nil {
		return nil, &GenerationError{Model: id, Err: err}
	}

	message := Sanitize(response.Content)
	if message == "" {
		return nil, &GenerationError{Model: id, Err: ErrEmptyMessage}
	}
	if g.emoji {
		message = AddEmoji(message)
	}

	result := &Result{
		Message:    message,
		TokensUsed: response.TotalTokens(),
		Model:      response.Model,
	}
	slog.Debug("Generated commit message", "model", id, "tokens", result.TokensUsed)
	return result, nil
}

// Sanitize strips code fences, surrounding quotes and extra blank lines
// that models tend to add around the message.
func Sanitize(message string) string {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	message = strings.TrimSpace(message)

	if strings.HasPrefix(message, "```") {
		lines := strings.Split(message, "\n")
		lines = lines[1:]
		if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
			lines = lines[:n-1]
		}
		message = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	for _, quote := range []string{`"`, "'", "`"} {
		if len(message) >= 2 && strings.HasPrefix(message, quote) && strings.HasSuffix(message, quote) {
			message = strings.TrimSpace(message[1 : len(message)-1])
		}
	}

	lines := strings.Split(message, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Package chat holds the provider-neutral message and response types
// exchanged with model providers.
package chat

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single turn sent to a model.
type Message struct {
	Role    MessageRole
	Content string
}

// Usage reports the tokens a completion consumed.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Response is a complete, non-streamed model answer.
type Response struct {
	Content string
	Model   string
	// Usage is nil when the provider did not report token counts.
	Usage *Usage
}

// TotalTokens returns the total token count, or 0 when usage is unknown.
func (r *Response) TotalTokens() int64 {
	if r == nil || r.Usage == nil {
		return 0
	}
	if r.Usage.TotalTokens > 0 {
		return r.Usage.TotalTokens
	}
	return r.Usage.InputTokens + r.Usage.OutputTokens
}

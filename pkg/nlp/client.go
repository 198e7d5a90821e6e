package nlp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/ontoreason/pkg/alert"
	"github.com/soundprediction/ontoreason/pkg/config"
)

// Role is the author of a chat message.
type Role string

const (
	// RoleSystem represents a system message.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
)

// ProviderOpenAI selects the OpenAI-compatible client.
const ProviderOpenAI = "openai"

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token counts when the provider returns them.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a chat completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// Client defines the interface for language model operations.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// ChatJSON is Chat with the provider asked for a JSON object.
	ChatJSON(ctx context.Context, messages []Message) (*Response, error)

	// Close cleans up any resources.
	Close() error
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// New builds the configured client, wrapped in a circuit breaker when
// enabled. An empty provider returns (nil, nil): no model configured.
func New(cfg config.NLPConfig, cb config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		client, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		if !cb.Enabled {
			return client, nil
		}
		return NewCircuitBreakerClient(client, cb, alerter, "nlp-"+cfg.Provider, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

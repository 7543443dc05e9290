// Package llm provides a unified chat interface over the LLM providers
// (Anthropic, OpenAI) used for briefing analysis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/folioiq/folioiq/internal/config"
)

// Provider names for configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrRateLimit    = errors.New("llm: rate limit exceeded")
	ErrProviderDown = errors.New("llm: provider unavailable")
	ErrUnknownName  = errors.New("llm: unknown provider")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response represents a complete response from the LLM.
type Response struct {
	Content      string        `json:"content"`
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Latency      time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions configures a single chat request.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Provider is the interface all LLM backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic").
	Name() string

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// New creates the provider named in the configuration.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		var opts []AnthropicOption
		if cfg.Model != "" {
			opts = append(opts, WithAnthropicModel(cfg.Model))
		}
		return NewAnthropicProvider(cfg.AnthropicKey, opts...)
	case ProviderOpenAI:
		var opts []OpenAIOption
		if cfg.Model != "" {
			opts = append(opts, WithOpenAIModel(cfg.Model))
		}
		return NewOpenAIProvider(cfg.OpenAIKey, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, cfg.Provider)
	}
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %d tokens, %v",
		r.Provider, r.Model, truncated, r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}

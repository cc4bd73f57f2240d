// Package llm provides the language model capability used by agents.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider is a chat-completion capable language model.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Message is one entry of a conversation.
type Message struct {
	Role       string             `json:"role"` // system, user, assistant, tool
	Content    string             `json:"content"`
	ToolCalls  []ToolCallResponse `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCallResponse is a tool invocation requested by the model.
type ToolCallResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Args      map[string]interface{} `json:"args"`
	ArgsError string                 `json:"args_error,omitempty"` // set when Args could not be decoded
}

// ChatRequest is a single inference request.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is a single inference result.
// Output keeps the ordered items as the model produced them; Content and
// ToolCalls are flattened views of the same data.
type ChatResponse struct {
	Content      string             `json:"content"`
	ToolCalls    []ToolCallResponse `json:"tool_calls,omitempty"`
	Output       []OutputItem       `json:"output"`
	StopReason   string             `json:"stop_reason,omitempty"`
	InputTokens  int                `json:"input_tokens,omitempty"`
	OutputTokens int                `json:"output_tokens,omitempty"`
	Model        string             `json:"model,omitempty"`
}

// AddText appends a text item.
func (r *ChatResponse) AddText(text string) {
	r.Content += text
	r.Output = append(r.Output, OutputItem{Kind: OutputText, Content: TextContent(text)})
}

// AddToolCall appends a tool call item.
func (r *ChatResponse) AddToolCall(tc ToolCallResponse) {
	r.ToolCalls = append(r.ToolCalls, tc)
	r.Output = append(r.Output, OutputItem{Kind: OutputToolCall, Call: &tc})
}

// RetryConfig controls retry of transient provider errors.
type RetryConfig struct {
	MaxRetries  int
	InitBackoff time.Duration
	MaxBackoff  time.Duration
}

// ProviderConfig configures NewProvider.
type ProviderConfig struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	BaseURL     string
	RetryConfig RetryConfig
}

// Validate checks required fields.
func (c ProviderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.APIKey == "" && c.BaseURL == "" {
		return fmt.Errorf("API key is required for provider %s", c.Provider)
	}
	return nil
}

// ParseRetryConfig converts config values to RetryConfig.
func ParseRetryConfig(maxRetries int, backoff string) RetryConfig {
	cfg := RetryConfig{MaxRetries: maxRetries}
	if backoff != "" {
		if d, err := time.ParseDuration(backoff); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}

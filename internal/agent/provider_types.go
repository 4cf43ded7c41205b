package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/showroom/pkg/models"
)

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations handle the specifics of communicating with different
// LLM APIs (OpenAI, Anthropic) while presenting a unified streaming
// interface to the orchestrator. Implementations must be safe for
// concurrent use.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion
// request: the conversation so far, the system prompt, tool
// declarations, and generation limits.
type CompletionRequest struct {
	// Model specifies which model to use. Empty selects the provider
	// default.
	Model string `json:"model"`

	// System sets the assistant's behavior. Handled separately from
	// messages by most LLM APIs.
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools declares the functions the model may request.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the generated response length. Zero uses the
	// provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage is a single message in a conversation. Role values:
// "user", "assistant", "tool".
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// ToolCalls holds tool execution requests made by the assistant.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// ToolResults holds outcomes of executed tools, sent back to the
	// model on the next call.
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk is one element of a streaming LLM response. A chunk
// carries partial text, a complete tool call, a terminal error, or the
// done signal with token usage.
type CompletionChunk struct {
	Text     string           `json:"text,omitempty"`
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`
	Done     bool             `json:"done,omitempty"`
	Error    error            `json:"-"`

	// Token usage, populated on the final chunk only.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Tool is an executable capability offered to the model.
type Tool interface {
	// Name returns the tool identifier used in function calling.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Schema returns the JSON schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool. Domain failures come back as a result
	// with IsError set; an error return means the call itself failed.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

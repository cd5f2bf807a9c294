package domain

import "time"

// Roles for canonical messages. The provider wire format calls the
// assistant role "model"; that mapping lives at the provider boundary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is the canonical conversation unit. History arrives from clients
// in several legacy shapes; the history package folds them all into this.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// ToolCalls is set on assistant turns that requested tool execution.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolResults is set on tool turns feeding results back to the model.
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// ToolCall is a structured request from the model to run a named function.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of one tool call. Failures are carried as an
// "error" key inside Response, never as a Go error, so the model always
// receives something to continue with.
type ToolResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolDefinition is the provider-facing declaration of a tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ChatRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	TopP        float64
	TopK        int
}

// ChatResponse is one model round. Text is the provider's aggregated text
// (the SDK text() accessor equivalent); Parts keeps the individual
// text-bearing parts of the first candidate so callers can reconstruct the
// text when the aggregate is unavailable.
type ChatResponse struct {
	Text      string
	Parts     []string
	ToolCalls []ToolCall
}

func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Package llm provides LLM client implementations.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
//
// Providers disagree about how arguments arrive: Anthropic and Ollama
// return a structured object, OpenAI returns a serialized JSON string.
// Both forms are preserved here; normalization (parsing RawArguments)
// is the caller's responsibility so that a parse failure is an explicit
// error rather than silently empty arguments.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`   // Provider-assigned ID
	Kind     string       `json:"type,omitempty"` // "function" when the provider tags it
	Function FunctionCall `json:"function"`
}

// FunctionCall is the named invocation inside a ToolCall.
type FunctionCall struct {
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments,omitempty"`     // structured form
	RawArguments string         `json:"raw_arguments,omitempty"` // serialized form, unparsed
}

// ChatOptions carries optional per-request parameters.
type ChatOptions struct {
	// ToolChoice forces the model to call the named tool. Providers
	// without a tool-choice mechanism (Ollama) ignore it; the single
	// bound tool definition constrains those models instead.
	ToolChoice string

	// MaxTokens overrides the provider default output limit when > 0.
	MaxTokens int
}

// ChatResponse is the unified response from any LLM provider.
// All fields use proper Go types; wire format conversion happens
// at provider boundaries (anthropic.go, openai.go, ollama.go).
type ChatResponse struct {
	Model   string
	Message Message
	Done    bool

	// ToolCalls mirrors older provider payloads that carried tool calls
	// at the response level rather than on the message. New code should
	// read Message.ToolCalls; the fallback resolver checks both shapes.
	ToolCalls []ToolCall

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

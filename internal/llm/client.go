// Package llm provides LLM client implementations.
package llm

import "context"

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// opts may be nil for default behavior.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts *ChatOptions) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

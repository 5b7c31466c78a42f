// Package agent implements the core agent loop: chat with the model,
// execute the tool calls it requests, and recover through the fallback
// controller when a tool keeps failing.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/warden-agent/internal/fallback"
	"github.com/nugget/warden-agent/internal/llm"
	"github.com/nugget/warden-agent/internal/notebook"
	"github.com/nugget/warden-agent/internal/tools"
)

const defaultMaxIterations = 8

const systemPrompt = "You are Warden, an autonomous assistant. Use the available tools to act on the user's behalf. Be concise. When a tool result answers the request, summarize it rather than repeating it verbatim."

// Response is the final outcome of one Run.
type Response struct {
	Content string
	Model   string
}

// Loop is the core agent execution loop. It keeps conversation state
// across calls so interactive sessions carry context.
type Loop struct {
	logger   *slog.Logger
	client   llm.Client
	model    string
	registry *tools.Registry
	fallback *fallback.Handler
	notebook *notebook.Store

	maxIterations int
	messages      []llm.Message
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations bounds the chat/tool cycles per Run.
func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.maxIterations = n }
}

// WithNotebook injects recorded facts and snippets into the system
// context.
func WithNotebook(store *notebook.Store) Option {
	return func(l *Loop) { l.notebook = store }
}

// NewLoop creates an agent loop.
func NewLoop(logger *slog.Logger, client llm.Client, model string, registry *tools.Registry, fb *fallback.Handler, opts ...Option) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		logger:        logger.With("component", "agent"),
		client:        client,
		model:         model,
		registry:      registry,
		fallback:      fb,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes one user input: it chats with the model, executes
// requested tool calls, and repeats until the model answers in plain
// text or the iteration bound is hit.
func (l *Loop) Run(ctx context.Context, userInput string) (*Response, error) {
	l.messages = append(l.messages, llm.Message{Role: "user", Content: userInput})

	toolDefs := l.registry.List()

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		msgs := append([]llm.Message{{Role: "system", Content: l.systemContext()}}, l.messages...)

		l.logger.Debug("calling model",
			"model", l.model, "messages", len(msgs), "iteration", iteration)

		resp, err := l.client.Chat(ctx, l.model, msgs, toolDefs, nil)
		if err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}

		assistant := resp.Message
		if len(assistant.ToolCalls) == 0 && len(resp.ToolCalls) > 0 {
			assistant.ToolCalls = resp.ToolCalls
		}
		l.messages = append(l.messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			return &Response{Content: assistant.Content, Model: l.model}, nil
		}

		for _, call := range assistant.ToolCalls {
			output, err := l.executeToolCall(ctx, &assistant, call)
			if err != nil {
				return nil, err
			}
			l.messages = append(l.messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	l.logger.Warn("tool iteration limit reached", "limit", l.maxIterations)
	return &Response{
		Content: "I could not finish: too many tool iterations.",
		Model:   l.model,
	}, nil
}

// executeToolCall runs one requested tool and reports failures to the
// fallback controller. The returned string is always a usable tool
// result message for the conversation, unless a fatal controller error
// aborts the run.
func (l *Loop) executeToolCall(ctx context.Context, assistant *llm.Message, call llm.ToolCall) (string, error) {
	name := call.Function.Name
	l.logger.Info("executing tool", "tool", name)

	var output string
	var err error
	if call.Function.Arguments != nil {
		output, err = l.registry.Invoke(ctx, name, call.Function.Arguments)
	} else {
		output, err = l.registry.Execute(ctx, name, call.Function.RawArguments)
	}
	if err == nil {
		// A success ends any active failure streak.
		if l.fallback != nil && l.fallback.Failures() > 0 {
			l.fallback.Reset()
		}
		return output, nil
	}

	l.logger.Warn("tool execution failed", "tool", name, "error", err)
	if l.fallback == nil {
		return fmt.Sprintf("Error: %v", err), nil
	}

	execErr := &fallback.ToolExecutionError{
		ToolName:    name,
		BaseMessage: assistant,
		Err:         err,
	}
	escalate, recErr := l.fallback.RecordFailure(execErr)
	if recErr != nil {
		return "", recErr
	}
	if !escalate {
		return fmt.Sprintf("Error: %v", err), nil
	}

	result, attemptErr := l.fallback.Attempt(ctx)
	if attemptErr != nil {
		return "", attemptErr
	}
	if result == nil {
		return fmt.Sprintf("Error: %v (all fallback models exhausted)", err), nil
	}

	l.logger.Info("fallback recovered tool call",
		"tool", name, "model", result.Model, "tool_invoked", result.ToolInvoked)
	return result.Output, nil
}

// systemContext assembles the system prompt plus any recorded notebook
// state.
func (l *Loop) systemContext() string {
	parts := []string{systemPrompt}
	if l.notebook != nil {
		if facts, err := l.notebook.FactsReport(); err == nil && facts != "" {
			parts = append(parts, facts)
		}
		if snippets, err := l.notebook.SnippetsReport(); err == nil && snippets != "" {
			parts = append(parts, snippets)
		}
	}
	return strings.Join(parts, "\n\n")
}

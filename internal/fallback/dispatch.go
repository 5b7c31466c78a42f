package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/warden-agent/internal/llm"
)

// Result is the outcome of a successful fallback attempt. When
// ToolInvoked is false the backend responded without calling the tool
// and Output is its plain text response.
type Result struct {
	Model       string
	Output      string
	ToolInvoked bool
}

// Attempt walks the fallback pool in order, trying each candidate with
// its configured strategy, and returns the first usable result. A
// candidate's failure is logged and absorbed; only cancellation aborts
// the walk. Exhaustion returns (nil, nil); the caller surfaces it as a
// terminal "fallback exhausted" outcome, distinct from any single
// candidate failing.
func (h *Handler) Attempt(ctx context.Context) (*Result, error) {
	h.logger.Error("tool call failed repeatedly, attempting fallback",
		"tool", h.currentTool, "failures", h.consecutiveFailures)
	h.notifier.Notice("Fallback Notification",
		fmt.Sprintf("Tool fallback activated: attempting fallback for tool %s.", h.currentTool))

	for _, model := range h.pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result *Result
		var err error
		if model.Style == StyleFunctionCall {
			result, err = h.attemptFunctionCall(ctx, model)
		} else {
			result, err = h.attemptPrompt(ctx, model)
		}

		h.usedModels[model.Name] = struct{}{}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			h.logger.Error("fallback attempt failed",
				"model", model.Name, "style", string(model.Style), "error", err)
			continue
		}
		if result != nil {
			h.logger.Debug("fallback succeeded", "model", model.Name, "tool_invoked", result.ToolInvoked)
			h.Reset()
			return result, nil
		}
	}

	h.notifier.Notice("Fallback Failed", "All fallback models have failed")
	return nil, nil
}

// attemptPrompt drives a candidate with the accumulated failure
// history so it can reason about what the original call was trying to
// do. A returned tool call is resolved and executed; a plain response
// is surfaced as the result itself.
func (h *Handler) attemptPrompt(ctx context.Context, model Model) (*Result, error) {
	h.logger.Debug("trying fallback model", "model", model.Name, "style", "prompt")

	client, err := h.factory(model.Provider, model.Name)
	if err != nil {
		return nil, err
	}

	toolDefs := []map[string]any{h.currentToolHandle.Definition()}
	resp, err := h.chatWithRetry(ctx, client, model.Name, h.promptMessages(), toolDefs)
	if err != nil {
		return nil, err
	}

	call, err := ExtractToolCall(resp, h.logger)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return &Result{Model: model.Name, Output: resp.Message.Content}, nil
	}

	// Resolve bound-first so a bound tool shadowing a registry entry is
	// the one invoked, matching how the failing tool was bound.
	tool, err := h.findTool(call.Function.Name)
	if err != nil {
		return nil, err
	}
	output, err := tool.Handler(ctx, call.Function.Arguments)
	if err != nil {
		return nil, err
	}
	return &Result{Model: model.Name, Output: output, ToolInvoked: true}, nil
}

// attemptFunctionCall drives a candidate through its structured tool
// binding, triggered with only the tool name. The backend's response is
// returned without executing the tool locally.
func (h *Handler) attemptFunctionCall(ctx context.Context, model Model) (*Result, error) {
	h.logger.Debug("trying fallback model", "model", model.Name, "style", "fc")

	client, err := h.factory(model.Provider, model.Name)
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{{Role: "user", Content: h.currentTool}}
	toolDefs := []map[string]any{h.currentToolHandle.Definition()}
	resp, err := h.chatWithRetry(ctx, client, model.Name, messages, toolDefs)
	if err != nil {
		return nil, err
	}

	output := resp.Message.Content
	if output == "" {
		call, err := ExtractToolCall(resp, h.logger)
		if err != nil {
			return nil, err
		}
		if call != nil {
			raw, err := json.Marshal(call)
			if err != nil {
				return nil, fmt.Errorf("encode tool call: %w", err)
			}
			output = string(raw)
		}
	}
	return &Result{Model: model.Name, Output: output}, nil
}

// promptMessages builds the conversation for a prompt-style attempt:
// the fallback-caller instruction, the failure evidence as system
// turns, and a retry request naming the tool.
func (h *Handler) promptMessages() []llm.Message {
	messages := []llm.Message{{
		Role:    "system",
		Content: "You are a fallback tool caller. Your only responsibility is to figure out what the previous failed tool call was trying to do and to call that tool with the correct format and arguments, using the provided failure messages.",
	}}
	for _, msg := range h.failedMessages {
		messages = append(messages, llm.Message{Role: "system", Content: msg.Content})
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("Retry using the tool '%s' with improved arguments.", h.currentTool),
	})
	return messages
}

// chatWithRetry wraps one backend call with a bounded transient-error
// retry. This is a per-candidate policy nested inside the pool walk;
// exhausting it means this candidate failed, nothing more.
func (h *Handler) chatWithRetry(ctx context.Context, client llm.Client, model string, messages []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	opts := &llm.ChatOptions{ToolChoice: h.currentTool}

	var lastErr error
	for attempt := 0; attempt < h.retryCount; attempt++ {
		resp, err := client.Chat(ctx, model, messages, toolDefs, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !isTransient(err) {
			return nil, err
		}

		h.logger.Debug("transient backend error, retrying",
			"model", model, "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return nil, fmt.Errorf("backend retries exhausted: %w", lastErr)
}

// isTransient classifies backend errors worth retrying on the same
// candidate: rate limits, timeouts, and upstream availability blips.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit",
		"429",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily",
		"overloaded",
		"502",
		"503",
		"504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

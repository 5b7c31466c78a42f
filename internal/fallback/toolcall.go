package fallback

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nugget/warden-agent/internal/llm"
)

// ExtractToolCall normalizes a backend response into a single tool
// call. Responses carry calls either on the assistant message or on the
// response object itself; the first call found wins, and more than one
// is logged as a warning. Serialized argument strings are parsed here
// so a malformed payload is an explicit error, never silently empty
// arguments. Returns nil when the backend declined to call the tool.
func ExtractToolCall(resp *llm.ChatResponse, logger *slog.Logger) (*llm.ToolCall, error) {
	if logger == nil {
		logger = slog.Default()
	}

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		calls = resp.ToolCalls
	}
	if len(calls) == 0 {
		return nil, nil
	}
	if len(calls) > 1 {
		logger.Warn("multiple tool calls detected, using the first one", "count", len(calls))
	}

	call := calls[0]
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	if call.Kind == "" {
		call.Kind = "function"
	}

	if call.Function.Arguments == nil {
		if call.Function.RawArguments != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(call.Function.RawArguments), &args); err != nil {
				return nil, fmt.Errorf("parse tool arguments: %w", err)
			}
			call.Function.Arguments = args
		} else {
			call.Function.Arguments = map[string]any{}
		}
	}

	return &call, nil
}

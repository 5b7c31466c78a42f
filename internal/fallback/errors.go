// Package fallback recovers from repeated tool-execution failures by
// escalating to a pool of alternate model backends. It counts the
// consecutive failures of one tool, and once the streak crosses a
// threshold it retries the call through each candidate backend in turn,
// using either a structured function-call binding or a natural-language
// prompt carrying the failure history.
package fallback

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/nugget/warden-agent/internal/llm"
)

// ToolExecutionError is the failure signal raised when a tool call
// fails inside the agent loop. BaseMessage optionally carries the
// conversation turn that produced the failed call, used as evidence for
// prompt-based recovery.
type ToolExecutionError struct {
	ToolName    string
	BaseMessage *llm.Message
	Err         error
}

// Error implements the error interface.
func (e *ToolExecutionError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("tool %q execution failed: %v", e.ToolName, e.Err)
	}
	return fmt.Sprintf("tool execution failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ErrNoToolName indicates that a failure signal carried no tool name,
// explicitly or recoverably. The controller cannot escalate without
// knowing which tool failed.
var ErrNoToolName = errors.New("could not determine which tool failed")

// ToolNotFoundError indicates that a tool name resolved from a failure
// matches nothing in the bound tool set or the registry. No fuzzy
// matching is attempted.
type ToolNotFoundError struct {
	ToolName string
}

// Error implements the error interface.
func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found among bound or registered tools", e.ToolName)
}

// toolNamePattern recovers a tool name from a failure's textual
// description when no explicit name was set.
var toolNamePattern = regexp.MustCompile(`name=['"](\w+)['"]`)

// extractToolName returns the failing tool's name: the explicit field
// when set, otherwise a name='...' token matched out of the error text.
func extractToolName(execErr *ToolExecutionError) (string, error) {
	if execErr.ToolName != "" {
		return execErr.ToolName, nil
	}
	if m := toolNamePattern.FindStringSubmatch(execErr.Error()); m != nil {
		return m[1], nil
	}
	return "", ErrNoToolName
}

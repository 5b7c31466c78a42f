package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "echo",
		Description: "Echo the input back.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			if text == "" {
				return "", fmt.Errorf("text is required")
			}
			return text, nil
		},
	})
	r.Register(&Tool{
		Name:        "always_fails",
		Description: "Always returns an error.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("deliberate failure")
		},
	})
	return r
}

func TestRegistryGet(t *testing.T) {
	r := newTestRegistry()
	if r.Get("echo") == nil {
		t.Error("registered tool not found")
	}
	if r.Get("missing") != nil {
		t.Error("unregistered tool should be nil")
	}
}

func TestRegistryListStableOrder(t *testing.T) {
	r := newTestRegistry()
	defs := r.List()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	// Sorted: always_fails before echo.
	fn := defs[0]["function"].(map[string]any)
	if fn["name"] != "always_fails" {
		t.Errorf("first definition = %v", fn["name"])
	}
	if defs[0]["type"] != "function" {
		t.Errorf("definition type = %v", defs[0]["type"])
	}
}

func TestDefinitionDefaultsParameters(t *testing.T) {
	tool := &Tool{Name: "bare"}
	def := tool.Definition()
	fn := def["function"].(map[string]any)
	params, ok := fn["parameters"].(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("parameters not defaulted: %v", fn["parameters"])
	}
}

func TestExecute(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	out, err := r.Execute(ctx, "echo", `{"text": "hello"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteInvalidJSON(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Execute(context.Background(), "echo", `{"text": `)
	if err == nil || !strings.Contains(err.Error(), "invalid arguments") {
		t.Errorf("err = %v", err)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Execute(context.Background(), "missing", "{}")
	var unavailable *ErrToolUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrToolUnavailable", err)
	}
	if unavailable.ToolName != "missing" {
		t.Errorf("ToolName = %q", unavailable.ToolName)
	}
}

func TestInvoke(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "hi" {
		t.Errorf("out = %q", out)
	}

	if _, err := r.Invoke(context.Background(), "always_fails", nil); err == nil {
		t.Error("expected handler error")
	}
}

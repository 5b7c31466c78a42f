package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nugget/warden-agent/internal/config"
	"github.com/nugget/warden-agent/internal/llm"
	"github.com/nugget/warden-agent/internal/tools"
)

// mockClient returns scripted responses and records what it was asked.
type mockClient struct {
	mu       sync.Mutex
	resp     *llm.ChatResponse
	err      error
	errOnce  bool // return err only on the first call
	calls    int
	messages []llm.Message
	opts     *llm.ChatOptions
	toolDefs []map[string]any
}

func (m *mockClient) Chat(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any, opts *llm.ChatOptions) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = messages
	m.opts = opts
	m.toolDefs = toolDefs
	if m.err != nil {
		if !m.errOnce || m.calls == 1 {
			return nil, m.err
		}
	}
	if m.resp == nil {
		return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "ok"}, Done: true}, nil
	}
	return m.resp, nil
}

func (m *mockClient) Ping(ctx context.Context) error { return nil }

// testEnv bundles a handler wired to scripted backends and a registry
// whose build tool records invocations.
type testEnv struct {
	handler    *Handler
	registry   *tools.Registry
	clients    map[string]*mockClient
	buildCalls []map[string]any
	notifier   *recordingNotifier
}

func twoModelConfig(maxFailures int) config.FallbackConfig {
	return config.FallbackConfig{
		MaxToolFailures: maxFailures,
		RetryCount:      1,
		Models: []config.FallbackModelConfig{
			{Name: "m1", Provider: "openai", Style: "prompt"},
			{Name: "m2", Provider: "anthropic", Style: "fc"},
		},
	}
}

func newTestEnv(t *testing.T, cfg config.FallbackConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		registry: tools.NewRegistry(),
		clients:  map[string]*mockClient{},
		notifier: &recordingNotifier{},
	}

	env.registry.Register(&tools.Tool{
		Name:        "run_build",
		Description: "Run the project build.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"target": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			env.buildCalls = append(env.buildCalls, args)
			return "build ok", nil
		},
	})
	env.registry.Register(&tools.Tool{
		Name:        "deploy",
		Description: "Deploy the project.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "deployed", nil
		},
	})

	factory := func(provider, model string) (llm.Client, error) {
		c, ok := env.clients[model]
		if !ok {
			return nil, fmt.Errorf("no scripted client for %s", model)
		}
		return c, nil
	}

	env.handler = New(cfg, llm.ProviderSettings{}, env.registry, nil,
		WithClientFactory(factory),
		WithNotifier(env.notifier),
	)
	return env
}

func buildFailure() *ToolExecutionError {
	return &ToolExecutionError{
		ToolName:    "run_build",
		BaseMessage: &llm.Message{Role: "assistant", Content: "run_build(target=all) failed"},
		Err:         fmt.Errorf("exit 1"),
	}
}

func TestRecordFailureCountsStreak(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(3))
	h := env.handler

	for i := 1; i <= 2; i++ {
		escalate, err := h.RecordFailure(buildFailure())
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if escalate {
			t.Errorf("failure %d should not escalate yet", i)
		}
		if h.Failures() != i {
			t.Errorf("failures = %d, want %d", h.Failures(), i)
		}
	}

	escalate, err := h.RecordFailure(buildFailure())
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !escalate {
		t.Error("third failure should escalate at maxFailures=3")
	}
	if h.FailingTool() != "run_build" {
		t.Errorf("failing tool = %q", h.FailingTool())
	}
}

func TestRecordFailureResetsOnNewTool(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(5))
	h := env.handler

	h.RecordFailure(buildFailure())
	h.RecordFailure(buildFailure())
	if h.Failures() != 2 {
		t.Fatalf("failures = %d", h.Failures())
	}

	escalate, err := h.RecordFailure(&ToolExecutionError{ToolName: "deploy", Err: fmt.Errorf("boom")})
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if escalate {
		t.Error("fresh streak should not escalate")
	}
	if h.Failures() != 1 {
		t.Errorf("failures after tool change = %d, want 1", h.Failures())
	}
	if h.FailingTool() != "deploy" {
		t.Errorf("failing tool = %q", h.FailingTool())
	}
	if len(h.failedMessages) != 0 {
		t.Errorf("old failure evidence kept: %v", h.failedMessages)
	}
	if len(h.UsedModels()) != 0 {
		t.Errorf("used set kept: %v", h.UsedModels())
	}
}

func TestRecordFailureSingleFailureEscalates(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(1))

	escalate, err := env.handler.RecordFailure(buildFailure())
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !escalate {
		t.Error("maxFailures=1 with a non-empty pool must escalate on the first failure")
	}
}

func TestRecordFailureNoEscalationWithEmptyPool(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.FallbackConfig{MaxToolFailures: 1, RetryCount: 1}
	env := newTestEnv(t, cfg) // no explicit models, no credentials: empty pool

	escalate, err := env.handler.RecordFailure(buildFailure())
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if escalate {
		t.Error("empty pool must never escalate")
	}
}

func TestRecordFailureDisabled(t *testing.T) {
	disabled := false
	cfg := twoModelConfig(1)
	cfg.Enabled = &disabled
	env := newTestEnv(t, cfg)

	// Even a nameless failure is ignored when disabled.
	escalate, err := env.handler.RecordFailure(&ToolExecutionError{Err: fmt.Errorf("mystery")})
	if err != nil || escalate {
		t.Errorf("disabled handler: escalate=%v err=%v", escalate, err)
	}
}

func TestRecordFailureExtractsNameFromDescription(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(3))

	execErr := &ToolExecutionError{Err: fmt.Errorf("call rejected name='run_build' bad args")}
	if _, err := env.handler.RecordFailure(execErr); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if env.handler.FailingTool() != "run_build" {
		t.Errorf("failing tool = %q", env.handler.FailingTool())
	}
}

func TestRecordFailureFatalWithoutName(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(3))

	_, err := env.handler.RecordFailure(&ToolExecutionError{Err: fmt.Errorf("mystery explosion")})
	if !errors.Is(err, ErrNoToolName) {
		t.Errorf("err = %v, want ErrNoToolName", err)
	}
	if env.handler.Failures() != 0 {
		t.Errorf("nameless failure must not count, failures = %d", env.handler.Failures())
	}
}

func TestRecordFailureUnknownTool(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(3))

	_, err := env.handler.RecordFailure(&ToolExecutionError{ToolName: "ghost", Err: fmt.Errorf("boom")})
	var notFound *ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ToolNotFoundError", err)
	}
	if notFound.ToolName != "ghost" {
		t.Errorf("ToolName = %q", notFound.ToolName)
	}
}

func TestRecordFailureAccumulatesEvidence(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(5))
	h := env.handler

	h.RecordFailure(buildFailure())
	h.RecordFailure(&ToolExecutionError{ToolName: "run_build", Err: fmt.Errorf("exit 2")})
	h.RecordFailure(buildFailure())

	// Second failure carried no message.
	if len(h.failedMessages) != 2 {
		t.Errorf("failed messages = %d, want 2", len(h.failedMessages))
	}
}

func TestResetClearsStateAndReloadsPool(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(5))
	h := env.handler

	h.RecordFailure(buildFailure())
	h.usedModels["m1"] = struct{}{}

	h.Reset()

	if h.Failures() != 0 || h.FailingTool() != "" {
		t.Errorf("state after reset: failures=%d tool=%q", h.Failures(), h.FailingTool())
	}
	if len(h.UsedModels()) != 0 || len(h.failedMessages) != 0 {
		t.Error("used set or evidence survived reset")
	}
	if len(h.Pool()) != 2 {
		t.Errorf("pool not reloaded, len = %d", len(h.Pool()))
	}
}

func TestFindToolPrefersBoundTools(t *testing.T) {
	env := newTestEnv(t, twoModelConfig(3))

	boundBuild := &tools.Tool{Name: "run_build", Description: "bound variant"}
	h := New(twoModelConfig(3), llm.ProviderSettings{}, env.registry, nil,
		WithBoundTools([]*tools.Tool{boundBuild}),
		WithNotifier(env.notifier),
	)

	got, err := h.findTool("run_build")
	if err != nil {
		t.Fatalf("findTool: %v", err)
	}
	if got != boundBuild {
		t.Error("bound tool should shadow the registry entry")
	}

	// Registry still reachable for tools not bound.
	if _, err := h.findTool("deploy"); err != nil {
		t.Errorf("registry lookup failed: %v", err)
	}
}

package fallback

import (
	"log/slog"

	"github.com/nugget/warden-agent/internal/config"
	"github.com/nugget/warden-agent/internal/llm"
	"github.com/nugget/warden-agent/internal/tools"
)

// ClientFactory constructs a fresh backend client for a provider and
// model. Each fallback attempt gets its own client.
type ClientFactory func(provider, model string) (llm.Client, error)

// Handler tracks the failure streak of one tool and drives fallback
// escalation. One instance lives for the agent session; nothing else
// mutates it.
type Handler struct {
	cfg      config.FallbackConfig
	settings llm.ProviderSettings
	registry *tools.Registry
	bound    []*tools.Tool
	factory  ClientFactory
	notifier Notifier
	logger   *slog.Logger

	enabled     bool
	maxFailures int
	retryCount  int

	consecutiveFailures int
	failedMessages      []llm.Message
	usedModels          map[string]struct{}
	currentTool         string
	currentToolHandle   *tools.Tool
	pool                []Model
}

// Option configures a Handler.
type Option func(*Handler)

// WithClientFactory overrides how backend clients are constructed.
func WithClientFactory(f ClientFactory) Option {
	return func(h *Handler) { h.factory = f }
}

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithBoundTools sets the tools bound on the live agent, searched
// before the registry when resolving a failing tool.
func WithBoundTools(bound []*tools.Tool) Option {
	return func(h *Handler) { h.bound = bound }
}

// New creates a fallback Handler. The model pool is loaded immediately
// and reloaded on every reset so credential changes are picked up.
func New(cfg config.FallbackConfig, settings llm.ProviderSettings, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	maxFailures := cfg.MaxToolFailures
	if maxFailures <= 0 {
		maxFailures = config.DefaultMaxToolFailures
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = config.DefaultFallbackRetryCount
	}

	h := &Handler{
		cfg:         cfg,
		settings:    settings,
		registry:    registry,
		notifier:    noopNotifier{},
		logger:      logger.With("component", "fallback"),
		enabled:     cfg.FallbackEnabled(),
		maxFailures: maxFailures,
		retryCount:  retryCount,
		usedModels:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.factory == nil {
		h.factory = func(provider, model string) (llm.Client, error) {
			return llm.NewClient(provider, settings, logger)
		}
	}

	h.pool = LoadModels(cfg, settings, h.notifier)
	return h
}

// Enabled reports whether fallback handling is active.
func (h *Handler) Enabled() bool {
	return h.enabled
}

// Failures returns the current consecutive failure count.
func (h *Handler) Failures() int {
	return h.consecutiveFailures
}

// FailingTool returns the tool name currently being tracked.
func (h *Handler) FailingTool() string {
	return h.currentTool
}

// Pool returns the current fallback model pool.
func (h *Handler) Pool() []Model {
	return h.pool
}

// UsedModels returns the identifiers attempted in the current streak.
func (h *Handler) UsedModels() []string {
	used := make([]string, 0, len(h.usedModels))
	for name := range h.usedModels {
		used = append(used, name)
	}
	return used
}

// RecordFailure registers one tool failure. A failure for a different
// tool than the one currently tracked resets the streak first. It
// returns true when the streak has crossed the threshold and the pool
// has candidates to try; the caller then invokes Attempt.
//
// A failure that yields no tool name, or names a tool that exists
// nowhere, is fatal to escalation and returned as an error.
func (h *Handler) RecordFailure(execErr *ToolExecutionError) (bool, error) {
	if !h.enabled {
		return false, nil
	}

	toolName, err := extractToolName(execErr)
	if err != nil {
		return false, err
	}

	if h.currentTool != "" && toolName != h.currentTool {
		h.logger.Debug("new failing tool, resetting streak",
			"previous", h.currentTool, "current", toolName)
		h.Reset()
	}

	h.logger.Debug("tool failure recorded", "tool", toolName, "error", execErr.Err)

	h.currentTool = toolName
	handle, err := h.findTool(toolName)
	if err != nil {
		return false, err
	}
	h.currentToolHandle = handle

	if execErr.BaseMessage != nil {
		h.failedMessages = append(h.failedMessages, *execErr.BaseMessage)
	}

	h.consecutiveFailures++
	h.logger.Debug("failure streak",
		"count", h.consecutiveFailures, "max", h.maxFailures)

	return h.consecutiveFailures >= h.maxFailures && len(h.pool) > 0, nil
}

// Reset ends the current streak: counters, failure evidence, and the
// used-model set are cleared, and the pool is reloaded so availability
// changes are picked up.
func (h *Handler) Reset() {
	h.consecutiveFailures = 0
	h.currentTool = ""
	h.currentToolHandle = nil
	h.failedMessages = h.failedMessages[:0]
	h.usedModels = make(map[string]struct{})
	h.pool = LoadModels(h.cfg, h.settings, h.notifier)
}

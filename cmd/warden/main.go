// Warden is an autonomous agent with resilient tool calling.
//
// It runs a chat loop against a configured LLM provider, executes the
// tool calls the model requests, and recovers from repeated tool
// failures by escalating to a pool of fallback models. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	warden ask <question>    Ask a single question and exit
//	warden chat              Interactive session on stdin
//	warden version           Print version and build information
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/warden-agent/internal/agent"
	"github.com/nugget/warden-agent/internal/buildinfo"
	"github.com/nugget/warden-agent/internal/config"
	"github.com/nugget/warden-agent/internal/fallback"
	"github.com/nugget/warden-agent/internal/fetch"
	"github.com/nugget/warden-agent/internal/llm"
	"github.com/nugget/warden-agent/internal/notebook"
	"github.com/nugget/warden-agent/internal/notify"
	"github.com/nugget/warden-agent/internal/tools"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run]. Keeping os.Exit and os.Args out of
// the application logic allows run to be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the warden command. Arguments are
// parsed by hand. The flag package relies on package-level globals
// (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and our argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: warden ask <question>")
		}
		return runAsk(ctx, stdout, configPath, strings.Join(cmdArgs, " "))
	case "chat":
		return runChat(ctx, stdout, configPath)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Warden - Autonomous Agent with Resilient Tool Calling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: warden [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ask <question>   Ask a single question and exit")
	fmt.Fprintln(w, "  chat             Interactive session on stdin")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./warden.yaml, ~/.config/warden/config.yaml, /etc/warden/config.yaml")
	return nil
}

// runAsk handles "warden ask <question>": boot the full agent, process
// one question, print the response, and shut down.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, question string) error {
	loop, cleanup, err := buildAgent(ctx, stdout, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resp, err := loop.Run(ctx, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, resp.Content)
	return nil
}

// runChat handles "warden chat": a line-oriented interactive session.
// Conversation state carries across turns. EOF or SIGINT ends the
// session.
func runChat(ctx context.Context, stdout io.Writer, configPath string) error {
	loop, cleanup, err := buildAgent(ctx, stdout, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(stdout, buildinfo.String())
	fmt.Fprintln(stdout, "Type a message, or press Ctrl-D to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		resp, err := loop.Run(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(stdout, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "%s\n\n", resp.Content)
	}

	fmt.Fprintln(stdout)
	return scanner.Err()
}

// buildAgent loads configuration and assembles the full agent stack:
// tool registry, notebook store, notifiers, fallback controller, and
// the loop itself. The returned cleanup closes everything in reverse
// order and must be called even when buildAgent's caller fails later.
func buildAgent(ctx context.Context, stdout io.Writer, configPath string) (*agent.Loop, func(), error) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	logger.Info("starting Warden",
		"version", buildinfo.Version, "commit", buildinfo.GitCommit,
		"config", cfgPath, "provider", cfg.Provider, "model", cfg.Model)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*agent.Loop, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fail(fmt.Errorf("create data directory %s: %w", cfg.DataDir, err))
	}

	// Notebook store: persistent key facts and snippets, injected into
	// the system context and editable through tools.
	store, err := notebook.NewStore(filepath.Join(cfg.DataDir, "warden.db"))
	if err != nil {
		return fail(fmt.Errorf("open notebook store: %w", err))
	}
	cleanups = append(cleanups, func() { store.Close() })

	registry := tools.NewRegistry()
	notebook.RegisterTools(registry, store)
	fetch.RegisterTool(registry, fetch.New())
	if cfg.Workspace != "" {
		tools.RegisterFileTools(registry, tools.NewFileTools(cfg.Workspace))
		logger.Info("file tools enabled", "workspace", cfg.Workspace)
	}
	logger.Info("tools registered", "tools", registry.Names())

	settings := llm.ProviderSettings{
		AnthropicAPIKey: cfg.Providers.Anthropic.APIKey,
		OpenAIAPIKey:    cfg.Providers.OpenAI.APIKey,
		OpenAIBaseURL:   cfg.Providers.OpenAI.BaseURL,
		OllamaURL:       cfg.Providers.Ollama.URL,
	}

	client, err := llm.NewClient(cfg.Provider, settings, logger)
	if err != nil {
		return fail(fmt.Errorf("create LLM client: %w", err))
	}

	// Notices go to the log and, when configured, to MQTT for remote
	// monitoring.
	notifiers := notify.Multi{notify.NewConsole(logger)}
	if cfg.MQTT.Enabled {
		pub := notify.NewMQTT(cfg.MQTT, logger)
		if err := pub.Start(ctx); err != nil {
			logger.Warn("mqtt publisher failed to start", "error", err)
		} else {
			notifiers = append(notifiers, pub)
			cleanups = append(cleanups, func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer stopCancel()
				if err := pub.Stop(stopCtx); err != nil {
					logger.Error("mqtt shutdown failed", "error", err)
				}
			})
			logger.Info("mqtt notices enabled", "broker", cfg.MQTT.Broker, "device", cfg.MQTT.DeviceName)
		}
	}

	fb := fallback.New(cfg.Fallback, settings, registry, logger,
		fallback.WithNotifier(notifiers))
	if fb.Enabled() {
		logger.Info("fallback controller ready",
			"max_tool_failures", cfg.Fallback.MaxToolFailures,
			"pool", len(fb.Pool()))
	} else {
		logger.Info("fallback controller disabled")
	}

	loop := agent.NewLoop(logger, client, cfg.Model, registry, fb,
		agent.WithNotebook(store))

	return loop, cleanup, nil
}

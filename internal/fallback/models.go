package fallback

import (
	"fmt"
	"strings"

	"github.com/nugget/warden-agent/internal/config"
	"github.com/nugget/warden-agent/internal/llm"
)

// Style selects how a fallback backend is driven.
type Style string

const (
	// StylePrompt sends a natural-language instruction plus the failure
	// history and lets the backend decide how to call the tool.
	StylePrompt Style = "prompt"

	// StyleFunctionCall forces a structured tool binding and triggers
	// it with only the tool name.
	StyleFunctionCall Style = "fc"
)

// Model is one candidate fallback backend.
type Model struct {
	Name     string
	Provider string
	Style    Style
}

// catalog lists known strong tool-calling backends in preference
// order. Entries are filtered against available credentials at load
// time.
var catalog = []Model{
	{Name: "claude-sonnet-4-20250514", Provider: "anthropic", Style: StyleFunctionCall},
	{Name: "gpt-4o", Provider: "openai", Style: StyleFunctionCall},
	{Name: "claude-3-5-haiku-20241022", Provider: "anthropic"},
	{Name: "gpt-4o-mini", Provider: "openai"},
	{Name: "qwen2.5:14b", Provider: "ollama"},
	{Name: "llama3.1:8b", Provider: "ollama"},
}

// Notifier receives human-readable status notices. Informational only.
type Notifier interface {
	Notice(title, body string)
}

type noopNotifier struct{}

func (noopNotifier) Notice(title, body string) {}

// LoadModels builds the ordered fallback pool. When the configuration
// supplies an explicit model list it is used verbatim; otherwise the
// catalog is filtered against provider credentials, up to the
// configured limit. Entries without an explicit style default to
// prompt; catalog identifiers are lower-cased for stable comparison.
func LoadModels(cfg config.FallbackConfig, settings llm.ProviderSettings, notifier Notifier) []Model {
	if notifier == nil {
		notifier = noopNotifier{}
	}

	if len(cfg.Models) > 0 {
		models := make([]Model, 0, len(cfg.Models))
		for _, m := range cfg.Models {
			style := Style(m.Style)
			if style == "" {
				style = StylePrompt
			}
			models = append(models, Model{Name: m.Name, Provider: m.Provider, Style: style})
		}
		return models
	}

	limit := cfg.ModelLimit
	if limit <= 0 {
		limit = config.DefaultFallbackModelLimit
	}

	var selected []Model
	var skipped []string
	for _, m := range catalog {
		if !llm.ProviderReady(m.Provider, settings) {
			skipped = append(skipped, m.Name)
			continue
		}
		if m.Style == "" {
			m.Style = StylePrompt
		}
		m.Name = strings.ToLower(m.Name)
		selected = append(selected, m)
		if len(selected) == limit {
			break
		}
	}

	names := make([]string, 0, len(selected))
	for _, m := range selected {
		names = append(names, m.Name)
	}
	message := "Fallback models selected: " + strings.Join(names, ", ")
	if len(selected) == 0 {
		message = "No fallback models available"
	}
	if len(skipped) > 0 {
		message += fmt.Sprintf("\nSkipped models due to missing provider credentials: %s",
			strings.Join(skipped, ", "))
	}
	notifier.Notice("Fallback Models", message)

	return selected
}

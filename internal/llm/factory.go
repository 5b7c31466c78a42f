package llm

import (
	"fmt"
	"log/slog"
	"os"
)

// ProviderSettings carries the connection material for every supported
// provider. Empty fields fall back to the conventional environment
// variables via Resolve.
type ProviderSettings struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OllamaURL       string
}

// Resolve returns a copy with empty fields filled from the environment
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, OLLAMA_HOST).
func (s ProviderSettings) Resolve() ProviderSettings {
	if s.AnthropicAPIKey == "" {
		s.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if s.OllamaURL == "" {
		s.OllamaURL = os.Getenv("OLLAMA_HOST")
	}
	return s
}

// NewClient constructs a fresh client for the named provider. Unknown
// providers are an error, not a panic; the fallback dispatcher treats
// it as a failed candidate.
func NewClient(provider string, settings ProviderSettings, logger *slog.Logger) (Client, error) {
	s := settings.Resolve()
	switch provider {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: no API key configured")
		}
		return NewAnthropicClient(s.AnthropicAPIKey, logger), nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: no API key configured")
		}
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL, logger), nil
	case "ollama":
		return NewOllamaClient(s.OllamaURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// ProviderReady reports whether the named provider has the credentials
// it needs. Used by the fallback model registry to skip catalog entries
// whose backends cannot be constructed.
func ProviderReady(provider string, settings ProviderSettings) bool {
	s := settings.Resolve()
	switch provider {
	case "anthropic":
		return s.AnthropicAPIKey != ""
	case "openai":
		return s.OpenAIAPIKey != ""
	case "ollama":
		// No credential; an explicit address signals a running server.
		return s.OllamaURL != ""
	default:
		return false
	}
}

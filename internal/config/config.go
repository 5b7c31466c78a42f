// Package config handles Warden configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Fallback controller defaults.
const (
	DefaultMaxToolFailures    = 3
	DefaultFallbackRetryCount = 3
	DefaultFallbackModelLimit = 5
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./warden.yaml, ~/.config/warden/config.yaml, /etc/warden/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"warden.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "warden", "config.yaml"))
	}

	paths = append(paths, "/etc/warden/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Warden configuration.
type Config struct {
	Provider  string          `yaml:"provider"` // provider for the agent loop's own model
	Model     string          `yaml:"model"`    // default model for the agent loop
	Providers ProvidersConfig `yaml:"providers"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	DataDir   string          `yaml:"data_dir"`
	Workspace string          `yaml:"workspace"` // enables sandboxed file tools when set
	LogLevel  string          `yaml:"log_level"`
}

// ProvidersConfig holds per-provider connection settings. API keys left
// empty here fall back to the provider's conventional environment
// variable (ANTHROPIC_API_KEY, OPENAI_API_KEY, OLLAMA_HOST).
type ProvidersConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig defines OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // override for compatible endpoints
}

// OllamaConfig defines local Ollama settings.
type OllamaConfig struct {
	URL string `yaml:"url"`
}

// FallbackConfig controls the tool-failure fallback controller.
type FallbackConfig struct {
	// Enabled defaults to true when unset. Use FallbackEnabled.
	Enabled *bool `yaml:"enabled"`
	// Models, when non-empty, replaces catalog filtering entirely. Each
	// entry is used verbatim; no credential re-validation is performed.
	Models []FallbackModelConfig `yaml:"models"`
	// MaxToolFailures is the consecutive-failure count that triggers
	// escalation. Default 3.
	MaxToolFailures int `yaml:"max_tool_failures"`
	// RetryCount bounds the transient-error retries around each
	// individual backend call, distinct from walking the model pool.
	// Default 3.
	RetryCount int `yaml:"retry_count"`
	// ModelLimit caps how many catalog models are selected. Default 5.
	ModelLimit int `yaml:"model_limit"`
}

// FallbackModelConfig is one explicit fallback model entry.
type FallbackModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	Style    string `yaml:"style"` // "prompt" (default) or "fc"
}

// FallbackEnabled reports whether the fallback controller is active.
// Absence of the setting means enabled.
func (f FallbackConfig) FallbackEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// MQTTConfig defines the optional notice publisher.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DeviceName string `yaml:"device_name"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so keys can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.Model == "" {
		c.Model = "qwen2.5:14b"
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Fallback.MaxToolFailures <= 0 {
		c.Fallback.MaxToolFailures = DefaultMaxToolFailures
	}
	if c.Fallback.RetryCount <= 0 {
		c.Fallback.RetryCount = DefaultFallbackRetryCount
	}
	if c.Fallback.ModelLimit <= 0 {
		c.Fallback.ModelLimit = DefaultFallbackModelLimit
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "warden"
	}
}

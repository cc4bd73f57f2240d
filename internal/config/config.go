// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "codeagent.toml"

// Config represents the codeagent configuration.
type Config struct {
	Agent   AgentConfig   `toml:"agent"`
	LLM     LLMConfig     `toml:"llm"`
	Sandbox SandboxConfig `toml:"sandbox"`
	Storage StorageConfig `toml:"storage"`
	NATS    NATSConfig    `toml:"nats"`
	Log     LogConfig     `toml:"log"`
}

// AgentConfig contains agent loop settings.
type AgentConfig struct {
	MaxIterations int    `toml:"max_iterations"` // Hard cap on agent turns per run
	HistoryWindow int    `toml:"history_window"` // Prior project messages fed as context
	Template      string `toml:"template"`       // Sandbox template the coding agent works in
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama)
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// SandboxConfig contains execution environment settings.
type SandboxConfig struct {
	Root      string `toml:"root"`       // Directory holding live sandboxes
	Templates string `toml:"templates"`  // Directory holding template trees, one per template id
	TimeoutMs int64  `toml:"timeout_ms"` // Sandbox lifetime, overridable with SANDBOX_TIMEOUT
	Port      int    `toml:"port"`       // Port the preview server listens on
	Domain    string `toml:"domain"`     // Domain public hosts are derived under
	Workdir   string `toml:"workdir"`    // Absolute home path the agent sees
	Shell     string `toml:"shell"`
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path string `toml:"path"` // Base directory for the database and run checkpoints
}

// NATSConfig contains event transport settings.
type NATSConfig struct {
	URL           string `toml:"url"`
	Subject       string `toml:"subject"`
	Queue         string `toml:"queue"`
	MaxConcurrent int    `toml:"max_concurrent"` // Workflow runs handled at once by serve
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 15,
			HistoryWindow: 3,
			Template:      "ai-saas-website-builderx",
		},
		LLM: LLMConfig{
			Provider:  "google",
			Model:     "gemini-2.5-flash",
			MaxTokens: 8192,
		},
		Sandbox: SandboxConfig{
			Root:      "~/.local/codeagent/sandboxes",
			Templates: "~/.local/codeagent/templates",
			TimeoutMs: 10 * 60 * 1000,
			Port:      3000,
			Domain:    "sandbox.localhost",
			Workdir:   "/home/user",
			Shell:     "/bin/sh",
		},
		Storage: StorageConfig{
			Path: "~/.local/codeagent",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Subject:       "code-agent.run",
			Queue:         "code-agent",
			MaxConcurrent: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration with environment overrides applied.
func Default() *Config {
	cfg := New()
	cfg.ApplyEnv()
	return cfg
}

// LoadFile loads configuration from a TOML file and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadDefault loads codeagent.toml from the current directory, falling back to
// defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := LoadFile(filepath.Join(cwd, DefaultFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv applies environment variable overrides.
// SANDBOX_TIMEOUT is a lifetime in milliseconds; values that do not parse to a
// positive number are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SANDBOX_TIMEOUT"); v != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && ms > 0 {
			c.Sandbox.TimeoutMs = ms
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// SandboxTimeout returns the sandbox lifetime.
func (c *Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMs) * time.Millisecond
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(ExpandPath(c.Storage.Path), "codeagent.db")
}

// RunsDir returns the directory holding per-run checkpoints.
func (c *Config) RunsDir() string {
	return filepath.Join(ExpandPath(c.Storage.Path), "runs")
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_AI_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

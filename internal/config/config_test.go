package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := New()

	if cfg.Agent.MaxIterations != 15 {
		t.Errorf("expected max_iterations 15, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.HistoryWindow != 3 {
		t.Errorf("expected history_window 3, got %d", cfg.Agent.HistoryWindow)
	}
	if cfg.Sandbox.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Sandbox.Port)
	}
	if cfg.SandboxTimeout() != 10*time.Minute {
		t.Errorf("expected 10m sandbox timeout, got %s", cfg.SandboxTimeout())
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DefaultFile)
	os.WriteFile(configPath, []byte(`
[agent]
template = "nextjs-15"

[llm]
provider = "anthropic"
model = "claude-sonnet-4"
max_tokens = 4096

[sandbox]
timeout_ms = 120000
domain = "preview.example.com"

[nats]
subject = "builds.run"
`), 0644)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Agent.Template != "nextjs-15" {
		t.Errorf("expected template 'nextjs-15', got %s", cfg.Agent.Template)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("expected max_tokens 4096, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.SandboxTimeout() != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %s", cfg.SandboxTimeout())
	}
	if cfg.Sandbox.Domain != "preview.example.com" {
		t.Errorf("expected domain override, got %s", cfg.Sandbox.Domain)
	}
	if cfg.NATS.Subject != "builds.run" {
		t.Errorf("expected subject 'builds.run', got %s", cfg.NATS.Subject)
	}
	// Untouched sections keep defaults
	if cfg.Agent.MaxIterations != 15 {
		t.Errorf("expected default max_iterations, got %d", cfg.Agent.MaxIterations)
	}
}

func TestConfig_LoadDefaultMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	os.Chdir(tmpDir)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("expected default model, got %s", cfg.LLM.Model)
	}
}

func TestConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DefaultFile)
	os.WriteFile(configPath, []byte(`[agent`), 0644)

	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_SandboxTimeoutEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"override", "60000", time.Minute},
		{"whitespace", " 30000 ", 30 * time.Second},
		{"garbage ignored", "soon", 10 * time.Minute},
		{"zero ignored", "0", 10 * time.Minute},
		{"negative ignored", "-5", 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SANDBOX_TIMEOUT", tt.value)
			cfg := Default()
			if got := cfg.SandboxTimeout(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestConfig_GetAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_AI_API_KEY", "g-key")
	t.Setenv("CUSTOM_KEY", "c-key")

	cfg := New()
	if got := cfg.GetAPIKey(); got != "g-key" {
		t.Errorf("expected provider default env key, got %q", got)
	}

	cfg.LLM.APIKeyEnv = "CUSTOM_KEY"
	if got := cfg.GetAPIKey(); got != "c-key" {
		t.Errorf("expected custom env key, got %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	if got := ExpandPath("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("unexpected expansion: %s", got)
	}
	if got := ExpandPath("/var/lib/x"); got != "/var/lib/x" {
		t.Errorf("absolute path changed: %s", got)
	}

	cfg := New()
	cfg.Storage.Path = "/srv/codeagent"
	if cfg.DatabasePath() != "/srv/codeagent/codeagent.db" {
		t.Errorf("unexpected db path: %s", cfg.DatabasePath())
	}
	if cfg.RunsDir() != "/srv/codeagent/runs" {
		t.Errorf("unexpected runs dir: %s", cfg.RunsDir())
	}
}

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected INFO prefix, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("message missing: %q", line)
	}
}

func TestLogger_WithComponentSharesSink(t *testing.T) {
	var buf bytes.Buffer
	root := New()
	root.SetOutput(&buf)

	child := root.WithComponent("workflow")
	child.Info("hello")

	if !strings.Contains(buf.String(), "[workflow] hello") {
		t.Errorf("expected component tag, got %q", buf.String())
	}

	// Level changes on the root apply to derived loggers
	root.SetLevel(LevelError)
	buf.Reset()
	child.Warn("filtered")
	if buf.Len() != 0 {
		t.Errorf("expected warn to be filtered, got %q", buf.String())
	}
}

func TestLogger_FieldsSortedWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithTraceID("run-1")
	logger.SetOutput(&buf)

	logger.Info("msg", map[string]interface{}{"b": 2, "a": 1})

	line := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(line, "msg a=1 b=2 run=run-1") {
		t.Errorf("unexpected field layout: %q", line)
	}
}

func TestLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.Agent("Status: creating - app/page.tsx")
	logger.ToolResult("terminal", time.Second, true)
	logger.StepFailed("get-sandbox-id", errors.New("quota"))
	logger.StepReplayed("terminal:1")

	out := buf.String()
	for _, want := range []string{
		"agent_event=true",
		"WARN ",
		"soft_error=true",
		"error=quota",
		"step_replayed step=terminal:1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

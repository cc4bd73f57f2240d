package llmtest

import (
	"context"
	"errors"
	"testing"

	"github.com/vinayprograms/codeagent/internal/llm"
)

func TestMockProvider_QueueThenFallback(t *testing.T) {
	m := NewMockProvider()
	m.Queue(TextResponse("first"))
	m.QueueError(errors.New("boom"))
	m.SetResponse("rest")

	ctx := context.Background()
	r, _ := m.Chat(ctx, llm.ChatRequest{})
	if r.Content != "first" {
		t.Errorf("expected first, got %q", r.Content)
	}
	if _, err := m.Chat(ctx, llm.ChatRequest{}); err == nil {
		t.Error("expected queued error")
	}
	r, _ = m.Chat(ctx, llm.ChatRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
	if r.Content != "rest" {
		t.Errorf("expected fallback, got %q", r.Content)
	}
	if m.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", m.CallCount())
	}
	if m.LastRequest().Messages[0].Content != "hi" {
		t.Error("last request not recorded")
	}
}

func TestToolCallResponseOf(t *testing.T) {
	resp := ToolCallResponseOf("working", llm.ToolCallResponse{ID: "1", Name: "terminal"}, llm.ToolCallResponse{ID: "2", Name: "readFiles"})
	if resp.Content != "working" || len(resp.ToolCalls) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Output) != 3 || resp.Output[0].Kind != llm.OutputText || resp.Output[2].Call.ID != "2" {
		t.Errorf("unexpected output order: %+v", resp.Output)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockProvider().Chat(ctx, llm.ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

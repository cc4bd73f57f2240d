package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/llm"
	"github.com/vinayprograms/codeagent/internal/llm/llmtest"
)

type echoTool struct {
	calls int
	fail  error
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echo the text argument." }
func (t *echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
	}
}

func (t *echoTool) Execute(ctx context.Context, tc ToolContext, args map[string]interface{}) (ToolResult, error) {
	t.calls++
	if t.fail != nil {
		return ToolResult{}, t.fail
	}
	var in struct {
		Text string `json:"text"`
	}
	if err := DecodeArgs(args, &in); err != nil {
		return SoftError(err.Error()), nil
	}
	return Success("echo: " + in.Text), nil
}

func newJournal(t *testing.T, dir string) *checkpoint.Journal {
	t.Helper()
	store, err := checkpoint.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return checkpoint.NewJournal(store, quietLogger())
}

func newNetwork(provider llm.Provider, tools ...Tool) (*Network, *Agent) {
	a := &Agent{
		Name:       "code-agent",
		System:     "You are a coding agent.",
		Provider:   provider,
		Tools:      tools,
		OnResponse: NewTracker(quietLogger()).OnResponse,
	}
	return &Network{
		Name:    "website-builder-network",
		Agents:  []*Agent{a},
		MaxIter: 15,
		Router:  RunUntilDone(a),
		Logger:  quietLogger(),
	}, a
}

func echoCall(id, text string) llm.ToolCallResponse {
	return llm.ToolCallResponse{ID: id, Name: "echo", Args: map[string]interface{}{"text": text}}
}

func TestNetwork_StopsOnSummary(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.Queue(
		llmtest.ToolCallResponseOf(`<status type="creating">app/page.tsx</status>`, echoCall("c1", "hi")),
		llmtest.TextResponse("<task_summary>Built a todo list.</task_summary>"),
	)
	tool := &echoTool{}
	n, _ := newNetwork(mock, tool)
	st := NewState()

	res, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "Build a todo app", st, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", res.Iterations)
	}
	if st.Summary != "<task_summary>Built a todo list.</task_summary>" || st.CurrentStatus != "complete" {
		t.Errorf("unexpected state: %+v", st)
	}
	if len(st.Progress) != 1 || st.Progress[0].Type != "creating" {
		t.Errorf("progress = %+v", st.Progress)
	}
	if tool.calls != 1 {
		t.Errorf("tool calls = %d", tool.calls)
	}

	// The second inference sees the tool result.
	req := mock.Requests()[1]
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "tool" || last.Content != "echo: hi" || last.ToolCallID != "c1" {
		t.Errorf("tool result not fed back: %+v", last)
	}
}

func TestNetwork_TerminatesAtMaxIter(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.SetResponse(`<status type="planning">thinking</status> still working`)
	n, _ := newNetwork(mock)
	st := NewState()

	res, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "Build", st, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Iterations != 15 || mock.CallCount() != 15 {
		t.Errorf("iterations = %d, calls = %d; want 15", res.Iterations, mock.CallCount())
	}
	if st.Summary != "" {
		t.Error("summary should stay empty")
	}
	if len(st.Progress) != 15 {
		t.Errorf("progress entries = %d", len(st.Progress))
	}
}

func TestNetwork_ConversationShape(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.SetResponse("<task_summary>done</task_summary>")
	n, _ := newNetwork(mock)

	history := []llm.Message{
		{Role: "assistant", Content: "newest"},
		{Role: "user", Content: "older"},
	}
	if _, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "Build it", NewState(), history); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	msgs := mock.LastRequest().Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Content != "newest" || msgs[2].Content != "older" {
		t.Errorf("unexpected prefix: %+v", msgs[:3])
	}
	if msgs[3].Role != "user" || msgs[3].Content != "Build it" {
		t.Errorf("user input not last: %+v", msgs[3])
	}
	if len(mock.LastRequest().Tools) != 0 {
		t.Errorf("unexpected tools: %+v", mock.LastRequest().Tools)
	}
}

func TestNetwork_UnknownToolIsSoftError(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.Queue(llmtest.ToolCallResponseOf("", llm.ToolCallResponse{ID: "x", Name: "deploy"}))
	mock.SetResponse("<task_summary>done</task_summary>")
	n, _ := newNetwork(mock, &echoTool{})

	if _, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "go", NewState(), nil); err != nil {
		t.Fatalf("unknown tool should not abort: %v", err)
	}
	msgs := mock.LastRequest().Messages
	if !strings.Contains(msgs[len(msgs)-1].Content, "tool not found: deploy") {
		t.Errorf("expected soft error, got %q", msgs[len(msgs)-1].Content)
	}
}

func TestNetwork_MalformedArgsIsSoftError(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.Queue(llmtest.ToolCallResponseOf("", llm.ToolCallResponse{
		ID:        "c1",
		Name:      "echo",
		ArgsError: "invalid JSON arguments: unexpected end of JSON input",
	}))
	mock.SetResponse("<task_summary>done</task_summary>")
	echo := &echoTool{}
	n, _ := newNetwork(mock, echo)

	if _, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "go", NewState(), nil); err != nil {
		t.Fatalf("malformed arguments should not abort: %v", err)
	}
	if echo.calls != 0 {
		t.Errorf("tool ran %d times with malformed arguments", echo.calls)
	}
	msgs := mock.LastRequest().Messages
	last := msgs[len(msgs)-1]
	if last.ToolCallID != "c1" || !strings.Contains(last.Content, "Failed to parse arguments for echo") {
		t.Errorf("expected soft parse error, got %+v", last)
	}
}

func TestNetwork_HardToolErrorAborts(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.Queue(llmtest.ToolCallResponseOf("", echoCall("c1", "x")))
	boom := errors.New("checkpoint disk full")
	n, _ := newNetwork(mock, &echoTool{fail: boom})

	_, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "go", NewState(), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected hard error, got %v", err)
	}
}

func TestNetwork_InferenceErrorAborts(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.QueueError(errors.New("invalid api key"))
	n, _ := newNetwork(mock)

	if _, err := n.Run(context.Background(), newJournal(t, t.TempDir()), "go", NewState(), nil); err == nil {
		t.Error("expected inference error")
	}
}

func TestNetwork_ReplaysInference(t *testing.T) {
	dir := t.TempDir()

	first := llmtest.NewMockProvider()
	first.Queue(
		llmtest.ToolCallResponseOf(`<status type="creating">page</status>`, echoCall("c1", "a")),
		llmtest.TextResponse("<task_summary>Built.</task_summary>"),
	)
	n, _ := newNetwork(first, &echoTool{})
	if _, err := n.Run(context.Background(), newJournal(t, dir), "go", NewState(), nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	second := llmtest.NewMockProvider()
	second.SetResponder(func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, errors.New("model must not be called on replay")
	})
	n2, _ := newNetwork(second, &echoTool{})
	st := NewState()
	if _, err := n2.Run(context.Background(), newJournal(t, dir), "go", st, nil); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.CallCount() != 0 {
		t.Errorf("model called %d times on replay", second.CallCount())
	}
	if st.Summary != "<task_summary>Built.</task_summary>" || len(st.Progress) != 1 {
		t.Errorf("replayed state differs: %+v", st)
	}
}

func TestAgent_RunOnce(t *testing.T) {
	mock := llmtest.NewMockProvider()
	mock.SetResponse("Todo App")
	a := &Agent{Name: "fragment-title-generation", System: "Title it.", Provider: mock}

	resp, err := a.RunOnce(context.Background(), newJournal(t, t.TempDir()), "summary")
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if ExtractText(resp.Output, "Fragment Title") != "Todo App" {
		t.Errorf("unexpected output: %+v", resp.Output)
	}
	msgs := mock.LastRequest().Messages
	if len(msgs) != 2 || msgs[0].Content != "Title it." || msgs[1].Content != "summary" {
		t.Errorf("unexpected request: %+v", msgs)
	}
}

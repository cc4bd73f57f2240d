// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/vinayprograms/codeagent/internal/llm"
)

// MockProvider is a scripted llm.Provider for tests.
// Responses are returned in the order queued; once the queue is drained the
// fallback response is returned.
type MockProvider struct {
	mu        sync.Mutex
	queue     []mockReply
	fallback  *llm.ChatResponse
	requests  []llm.ChatRequest
	responder func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

type mockReply struct {
	resp *llm.ChatResponse
	err  error
}

// NewMockProvider creates a mock provider that answers "OK" by default.
func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: TextResponse("OK")}
}

// TextResponse builds a response carrying a single text item.
func TextResponse(text string) *llm.ChatResponse {
	r := &llm.ChatResponse{}
	r.AddText(text)
	return r
}

// ToolCallResponseOf builds a response with optional text followed by tool calls.
func ToolCallResponseOf(text string, calls ...llm.ToolCallResponse) *llm.ChatResponse {
	r := &llm.ChatResponse{}
	if text != "" {
		r.AddText(text)
	}
	for _, c := range calls {
		r.AddToolCall(c)
	}
	return r
}

// SetResponse sets the fallback text response.
func (m *MockProvider) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = TextResponse(text)
}

// Queue appends scripted responses.
func (m *MockProvider) Queue(resps ...*llm.ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resps {
		m.queue = append(m.queue, mockReply{resp: r})
	}
}

// QueueError appends a scripted failure.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
}

// SetResponder installs a function that answers every request, bypassing the queue.
func (m *MockProvider) SetResponder(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Chat implements llm.Provider.
func (m *MockProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.requests = append(m.requests, req)
	if m.responder != nil {
		return m.responder(req)
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next.resp, next.err
	}
	return m.fallback, nil
}

// Requests returns all recorded requests.
func (m *MockProvider) Requests() []llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request.
func (m *MockProvider) LastRequest() llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// CallCount returns the number of Chat calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

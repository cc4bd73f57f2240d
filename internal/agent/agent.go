package agent

import (
	"context"
	"fmt"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/llm"
)

// ResponseHook observes the text of each agent turn.
type ResponseHook func(ctx context.Context, st *State, text string)

// Agent is one LLM-backed agent: a system prompt, a model, and its tools.
type Agent struct {
	Name        string
	Description string
	System      string
	Provider    llm.Provider
	Tools       []Tool
	OnResponse  ResponseHook
}

// Tool returns the agent's tool with the given name.
func (a *Agent) Tool(name string) Tool {
	for _, t := range a.Tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Infer runs one inference over messages as a durable step named after the
// agent, so a resumed run sees the same turn instead of a fresh sample.
func (a *Agent) Infer(ctx context.Context, steps *checkpoint.Journal, messages []llm.Message) (*llm.ChatResponse, error) {
	req := llm.ChatRequest{
		Messages: append([]llm.Message{{Role: "system", Content: a.System}}, messages...),
		Tools:    ToolDefs(a.Tools),
	}

	resp, err := checkpoint.Run(ctx, steps, a.Name, func(ctx context.Context) (*llm.ChatResponse, error) {
		return a.Provider.Chat(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.Name, err)
	}
	if resp == nil {
		resp = &llm.ChatResponse{}
	}
	return resp, nil
}

// RunOnce runs a single turn with input as the only user message.
func (a *Agent) RunOnce(ctx context.Context, steps *checkpoint.Journal, input string) (*llm.ChatResponse, error) {
	return a.Infer(ctx, steps, []llm.Message{{Role: "user", Content: input}})
}

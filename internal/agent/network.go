package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/llm"
	"github.com/vinayprograms/codeagent/internal/logging"
)

// DefaultMaxIter bounds a network run when MaxIter is not set.
const DefaultMaxIter = 15

// Router picks the agent for the next iteration, or nil to stop.
// callCount is the number of iterations already run.
type Router func(st *State, callCount int) *Agent

// Network drives agents over a shared State until the router stops or
// MaxIter iterations have run.
type Network struct {
	Name    string
	Agents  []*Agent
	MaxIter int
	Router  Router
	Logger  *logging.Logger
}

// NetworkResult is the outcome of Network.Run.
type NetworkResult struct {
	State      *State
	Iterations int
	Messages   []llm.Message
}

// RunUntilDone routes to agent while the state has no summary.
func RunUntilDone(agent *Agent) Router {
	return func(st *State, _ int) *Agent {
		if st.Done() {
			return nil
		}
		return agent
	}
}

// Run executes the loop. The conversation starts with history, in the order
// given, followed by input as a user message. Each iteration runs one
// inference, the agent's response hook, then each requested tool call in
// order, appending results to the conversation.
func (n *Network) Run(ctx context.Context, steps *checkpoint.Journal, input string, st *State, history []llm.Message) (*NetworkResult, error) {
	if n.Router == nil {
		return nil, fmt.Errorf("network %s has no router", n.Name)
	}
	logger := n.Logger
	if logger == nil {
		logger = logging.New()
	}
	maxIter := n.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: input})

	iter := 0
	for ; iter < maxIter; iter++ {
		a := n.Router(st, iter)
		if a == nil {
			break
		}

		logger.Debug("network_iteration", map[string]interface{}{
			"network":   n.Name,
			"agent":     a.Name,
			"iteration": iter + 1,
		})

		resp, err := a.Infer(ctx, steps, messages)
		if err != nil {
			return nil, err
		}

		if a.OnResponse != nil {
			a.OnResponse(ctx, st, LastText(resp.Output))
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, err := n.callTool(ctx, a, steps, st, call, logger)
			if err != nil {
				return nil, err
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result.Content(),
				ToolCallID: call.ID,
			})
		}
	}

	if iter == maxIter && !st.Done() {
		logger.Warn("network_iterations_exhausted", map[string]interface{}{
			"network":    n.Name,
			"iterations": maxIter,
		})
	}

	return &NetworkResult{State: st, Iterations: iter, Messages: messages}, nil
}

func (n *Network) callTool(ctx context.Context, a *Agent, steps *checkpoint.Journal, st *State, call llm.ToolCallResponse, logger *logging.Logger) (ToolResult, error) {
	tool := a.Tool(call.Name)
	if tool == nil {
		return SoftError(fmt.Sprintf("tool not found: %s", call.Name)), nil
	}
	if call.ArgsError != "" {
		logger.Warn("Malformed tool arguments", map[string]interface{}{
			"tool":  call.Name,
			"error": call.ArgsError,
		})
		return SoftError(fmt.Sprintf("Failed to parse arguments for %s: %s", call.Name, call.ArgsError)), nil
	}

	start := time.Now()
	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := tool.Execute(ctx, ToolContext{State: st, Steps: steps}, args)
	if err != nil {
		return ToolResult{}, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	logger.ToolResult(call.Name, time.Since(start), result.IsSoftError())
	return result, nil
}

// DecodeArgs decodes tool call arguments into v.
func DecodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

package agent

import (
	"context"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/llm"
)

// Tool is a capability the agent may call.
//
// Execute returns a ToolResult for anything the agent should see, including
// failures it can recover from. A non-nil error aborts the run.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, tc ToolContext, args map[string]interface{}) (ToolResult, error)
}

// ToolContext gives a tool access to the run it is part of.
type ToolContext struct {
	State *State
	Steps *checkpoint.Journal
}

// ToolResult is a tool's answer to the agent: output on success, or a soft
// error message the agent can react to.
type ToolResult struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success wraps tool output.
func Success(output string) ToolResult {
	return ToolResult{Output: output}
}

// SoftError wraps a failure message returned to the agent.
func SoftError(msg string) ToolResult {
	return ToolResult{Error: msg}
}

// IsSoftError reports whether the tool failed.
func (r ToolResult) IsSoftError() bool {
	return r.Error != ""
}

// Content is the text fed back to the agent.
func (r ToolResult) Content() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Output
}

// ToolDefs converts tools to their model-facing definitions.
func ToolDefs(tools []Tool) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Package tools implements the sandbox tools offered to the coding agent.
// Each tool body runs as a durable step, so a resumed run replays its result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/vinayprograms/codeagent/internal/agent"
	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/sandbox"
)

// Tool names, also used as step names.
const (
	TerminalName            = "terminal"
	CreateOrUpdateFilesName = "createOrUpdateFiles"
	ReadFilesName           = "readFiles"
)

// NewSet returns the terminal, createOrUpdateFiles and readFiles tools bound
// to the sandbox with the given id.
func NewSet(provider sandbox.Provider, sandboxID string, logger *logging.Logger) []agent.Tool {
	if logger == nil {
		logger = logging.New()
	}
	b := &binding{provider: provider, sandboxID: sandboxID, logger: logger.WithComponent("tools")}
	return []agent.Tool{
		&terminalTool{b},
		&createOrUpdateFilesTool{b},
		&readFilesTool{b},
	}
}

// binding re-resolves the sandbox inside each step so steps keep working
// after a restart.
type binding struct {
	provider  sandbox.Provider
	sandboxID string
	logger    *logging.Logger
}

func (b *binding) connect(ctx context.Context) (sandbox.Environment, error) {
	return b.provider.Connect(ctx, b.sandboxID)
}

// --- terminal ---

type terminalTool struct{ *binding }

func (t *terminalTool) Name() string { return TerminalName }

func (t *terminalTool) Description() string {
	return "Use the terminal to run commands"
}

func (t *terminalTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *terminalTool) Execute(ctx context.Context, tc agent.ToolContext, args map[string]interface{}) (agent.ToolResult, error) {
	var in struct {
		Command string `json:"command"`
	}
	if err := agent.DecodeArgs(args, &in); err != nil || strings.TrimSpace(in.Command) == "" {
		return agent.SoftError("Command failed: command is required"), nil
	}

	t.logger.ToolCall(TerminalName, 1)
	return checkpoint.Run(ctx, tc.Steps, TerminalName, func(ctx context.Context) (agent.ToolResult, error) {
		var mu sync.Mutex
		var stdout, stderr strings.Builder

		env, err := t.connect(ctx)
		if err == nil {
			var res *sandbox.CommandResult
			res, err = env.Run(ctx, in.Command, sandbox.RunOptions{
				OnStdout: func(s string) {
					mu.Lock()
					stdout.WriteString(s)
					mu.Unlock()
				},
				OnStderr: func(s string) {
					mu.Lock()
					stderr.WriteString(s)
					mu.Unlock()
				},
			})
			if err == nil {
				return agent.Success(res.Stdout), nil
			}
		}

		mu.Lock()
		defer mu.Unlock()
		t.logger.Error("Terminal command failed", map[string]interface{}{
			"command": in.Command,
			"error":   err.Error(),
			"stdout":  stdout.String(),
			"stderr":  stderr.String(),
		})
		return agent.SoftError(fmt.Sprintf("Command failed: %v \n stderr: %s \n stdout: %s", err, stderr.String(), stdout.String())), nil
	})
}

// --- createOrUpdateFiles ---

// File is one file to write.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type createOrUpdateFilesTool struct{ *binding }

// writeResult is the memoized output of a createOrUpdateFiles step: the
// merged file map on success, or the soft error.
type writeResult struct {
	Files map[string]string `json:"files,omitempty"`
	Error string            `json:"error,omitempty"`
}

func (t *createOrUpdateFilesTool) Name() string { return CreateOrUpdateFilesName }

func (t *createOrUpdateFilesTool) Description() string {
	return "Create or update a file in the sandbox"
}

func (t *createOrUpdateFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"files": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"path":    map[string]interface{}{"type": "string"},
						"content": map[string]interface{}{"type": "string"},
					},
					"required": []string{"path", "content"},
				},
			},
		},
		"required": []string{"files"},
	}
}

// Execute writes the files in order and merges them into the state's file
// map. The map is replaced only when every write succeeded; on failure some
// files may already be in the sandbox, and a retry sends the full batch again.
func (t *createOrUpdateFilesTool) Execute(ctx context.Context, tc agent.ToolContext, args map[string]interface{}) (agent.ToolResult, error) {
	var in struct {
		Files []File `json:"files"`
	}
	if err := agent.DecodeArgs(args, &in); err != nil {
		return agent.SoftError(fmt.Sprintf("Failed to create or update files: %v", err)), nil
	}

	t.logger.ToolCall(CreateOrUpdateFilesName, len(in.Files))
	res, err := checkpoint.Run(ctx, tc.Steps, CreateOrUpdateFilesName, func(ctx context.Context) (writeResult, error) {
		updated := make(map[string]string, len(tc.State.Files)+len(in.Files))
		for k, v := range tc.State.Files {
			updated[k] = v
		}

		werr := func() error {
			env, err := t.connect(ctx)
			if err != nil {
				return err
			}
			for _, f := range in.Files {
				if err := env.WriteFile(ctx, f.Path, f.Content); err != nil {
					return err
				}
				updated[f.Path] = f.Content
			}
			return nil
		}()
		if werr != nil {
			t.logger.Error("Failed to create or update files", map[string]interface{}{
				"error":      werr.Error(),
				"file_count": len(in.Files),
				"file_paths": paths(in.Files),
			})
			return writeResult{Error: fmt.Sprintf("Failed to create or update files: %v", werr)}, nil
		}
		return writeResult{Files: updated}, nil
	})
	if err != nil {
		return agent.ToolResult{}, err
	}
	if res.Error != "" {
		return agent.SoftError(res.Error), nil
	}

	if res.Files == nil {
		res.Files = map[string]string{}
	}
	tc.State.Files = res.Files

	data, err := json.Marshal(res.Files)
	if err != nil {
		return agent.ToolResult{}, err
	}
	return agent.Success(string(data)), nil
}

func paths(files []File) string {
	p := make([]string, len(files))
	for i, f := range files {
		p[i] = f.Path
	}
	return strings.Join(p, ",")
}

// --- readFiles ---

type readFilesTool struct{ *binding }

func (t *readFilesTool) Name() string { return ReadFilesName }

func (t *readFilesTool) Description() string {
	return "Reads files from the sandbox"
}

func (t *readFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"files": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"files"},
	}
}

func (t *readFilesTool) Execute(ctx context.Context, tc agent.ToolContext, args map[string]interface{}) (agent.ToolResult, error) {
	var in struct {
		Files []string `json:"files"`
	}
	if err := agent.DecodeArgs(args, &in); err != nil {
		return agent.SoftError(fmt.Sprintf("Failed to read file: %v", err)), nil
	}

	t.logger.ToolCall(ReadFilesName, len(in.Files))
	return checkpoint.Run(ctx, tc.Steps, ReadFilesName, func(ctx context.Context) (agent.ToolResult, error) {
		contents, rerr := func() ([]File, error) {
			env, err := t.connect(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]File, 0, len(in.Files))
			for _, p := range in.Files {
				content, err := env.ReadFile(ctx, p)
				if err != nil {
					return nil, err
				}
				out = append(out, File{Path: p, Content: content})
			}
			return out, nil
		}()
		if rerr != nil {
			t.logger.Error("Failed to read files", map[string]interface{}{
				"error":      rerr.Error(),
				"file_count": len(in.Files),
				"file_paths": strings.Join(in.Files, ","),
			})
			return agent.SoftError(fmt.Sprintf("Failed to read file: %v", rerr)), nil
		}

		data, err := json.Marshal(contents)
		if err != nil {
			return agent.ToolResult{}, err
		}
		return agent.Success(string(data)), nil
	})
}

// Package main defines the CLI structure using kong.
package main

import (
	"time"

	"github.com/alecthomas/kong"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `help:"Config file path (default ./codeagent.toml)"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Run     RunCmd     `cmd:"" help:"Run the code agent workflow once"`
	Serve   ServeCmd   `cmd:"" help:"Run workflows for events received over NATS"`
	Send    SendCmd    `cmd:"" help:"Record a prompt and publish its workflow event"`
	Inspect InspectCmd `cmd:"" help:"Show a project's workflow outcomes"`
	Watch   WatchCmd   `cmd:"" help:"Follow a run's checkpoints as they commit"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd executes one workflow run in-process.
type RunCmd struct {
	Project string `short:"p" help:"Project id"`
	Prompt  string `help:"Request for the coding agent"`
	Event   string `short:"e" help:"Event file (YAML or JSON) with projectId and value"`
	RunID   string `help:"Run id; reuse one to resume a checkpointed run"`
}

// ServeCmd subscribes to workflow events.
type ServeCmd struct {
	ReapInterval time.Duration `default:"1m" help:"How often expired sandboxes are removed"`
}

// SendCmd publishes a workflow event.
type SendCmd struct {
	Project string `short:"p" required:"" help:"Project id"`
	Prompt  string `arg:"" help:"Request for the coding agent"`
	RunID   string `help:"Run id (default: generated)"`
}

// InspectCmd prints outcome records.
type InspectCmd struct {
	Project string `arg:"" help:"Project id"`
	JSON    bool   `help:"Print records as JSON"`
	Width   int    `default:"80" help:"Wrap width for message content"`
}

// WatchCmd follows a run's checkpoint directory.
type WatchCmd struct {
	RunID string `arg:"" help:"Run id"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}

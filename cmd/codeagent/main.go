// Package main is the entry point for the codeagent CLI.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env for API keys and SANDBOX_TIMEOUT
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("codeagent"),
		kong.Description("Builds web applications in sandboxes with an LLM coding agent."),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// Run prints version information.
func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("codeagent version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

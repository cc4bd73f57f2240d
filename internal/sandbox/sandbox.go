// Package sandbox provides isolated execution environments for agent runs.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no sandbox exists for an id.
	ErrNotFound = errors.New("sandbox not found")
	// ErrExpired is returned for any operation on a sandbox past its lifetime.
	ErrExpired = errors.New("sandbox expired")
)

// DefaultTimeout is the sandbox lifetime used when none is configured.
const DefaultTimeout = 10 * time.Minute

// Provider acquires sandboxes and re-resolves them by id.
type Provider interface {
	// Create provisions a sandbox from template. It either returns a ready
	// environment or a *ProvisionError.
	Create(ctx context.Context, template string) (Environment, error)
	// Connect returns the live sandbox with the given id. It may be called
	// any number of times, including from another process.
	Connect(ctx context.Context, id string) (Environment, error)
	// SetTimeout sets the sandbox to expire d from now.
	SetTimeout(ctx context.Context, id string, d time.Duration) error
	// Kill releases the sandbox immediately.
	Kill(ctx context.Context, id string) error
}

// Environment is a handle to one sandbox.
type Environment interface {
	ID() string
	Run(ctx context.Context, command string, opts RunOptions) (*CommandResult, error)
	WriteFile(ctx context.Context, path, content string) error
	ReadFile(ctx context.Context, path string) (string, error)
	// Host returns the hostname that routes to port inside the sandbox.
	Host(port int) string
}

// RunOptions carries streaming callbacks for a command.
type RunOptions struct {
	OnStdout func(data string)
	OnStderr func(data string)
}

// CommandResult is the outcome of a finished command.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// CommandExitError is returned when a command exits non-zero.
type CommandExitError struct {
	Result *CommandResult
}

func (e *CommandExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Result.ExitCode)
}

// ProvisionError reports a sandbox that could not be created.
type ProvisionError struct {
	Template string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision sandbox from template %q: %v", e.Template, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// PublicURL returns the public URL for port in env.
func PublicURL(env Environment, port int) string {
	return "https://" + env.Host(port)
}

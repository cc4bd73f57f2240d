// Package workflow runs the code agent workflow: provision a sandbox, run
// the coding agent against it, and commit exactly one outcome record.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/codeagent/internal/agent"
	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/llm"
	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/prompt"
	"github.com/vinayprograms/codeagent/internal/sandbox"
	"github.com/vinayprograms/codeagent/internal/store"
	"github.com/vinayprograms/codeagent/internal/tools"
)

// Names of the workflow, its agents and its pipeline steps.
const (
	FunctionName      = "code-agent"
	NetworkName       = "website-builder-network"
	CodeAgentName     = "code-agent"
	TitleAgentName    = "fragment-title-generation"
	ResponseAgentName = "response-generation"

	StepSandboxID  = "get-sandbox-id"
	StepHistory    = "get-previous-messages"
	StepSandboxURL = "get-sandbox-url"
	StepSaveResult = "save-result"
)

// User-facing texts of outcome records.
const (
	ErrorMessage     = "Something went wrong. Please try again."
	FallbackTitle    = "Fragment Title"
	FallbackResponse = "Response"
)

// MaxValueLength bounds the user's request text.
const MaxValueLength = 10000

// Event triggers one workflow run.
type Event struct {
	ProjectID string `json:"projectId" yaml:"projectId"`
	Value     string `json:"value" yaml:"value"`
}

// Validate checks the event fields.
func (e Event) Validate() error {
	if e.ProjectID == "" {
		return fmt.Errorf("projectId is required")
	}
	n := utf8.RuneCountInString(e.Value)
	if n == 0 {
		return fmt.Errorf("value is required")
	}
	if n > MaxValueLength {
		return fmt.Errorf("value is too long (%d > %d characters)", n, MaxValueLength)
	}
	return nil
}

// Result is returned by a completed run.
type Result struct {
	URL           string                 `json:"url"`
	Files         map[string]string      `json:"files"`
	Summary       string                 `json:"summary"`
	Progress      []agent.ProgressStatus `json:"progress"`
	CurrentStatus string                 `json:"currentStatus"`
	IsError       bool                   `json:"isError"`
	MessageID     string                 `json:"messageId,omitempty"`
}

// Store is the conversation history and outcome storage the driver needs.
type Store interface {
	RecentMessages(ctx context.Context, projectID string, n int) ([]store.Message, error)
	CreateOutcome(ctx context.Context, o store.Outcome) (*store.Message, error)
}

// Options configures a Driver.
type Options struct {
	Template      string
	Timeout       time.Duration // sandbox lifetime
	Port          int
	MaxIter       int
	HistoryWindow int
	RunsDir       string // checkpoint root, one directory per run
}

// Driver runs workflows. It holds only shared, read-only dependencies and is
// safe for concurrent runs.
type Driver struct {
	sandboxes sandbox.Provider
	store     Store
	model     llm.Provider
	logger    *logging.Logger
	tracer    trace.Tracer
	opts      Options
}

// NewDriver creates a driver.
func NewDriver(sandboxes sandbox.Provider, st Store, model llm.Provider, logger *logging.Logger, opts Options) *Driver {
	if logger == nil {
		logger = logging.New()
	}
	if opts.Template == "" {
		opts.Template = "ai-saas-website-builderx"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = sandbox.DefaultTimeout
	}
	if opts.Port == 0 {
		opts.Port = 3000
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = agent.DefaultMaxIter
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 3
	}
	return &Driver{
		sandboxes: sandboxes,
		store:     st,
		model:     model,
		logger:    logger.WithComponent("workflow"),
		tracer:    defaultTracer(),
		opts:      opts,
	}
}

// IsError reports whether a run failed: no summary, or no files.
func IsError(st *agent.State) bool {
	return st.Summary == "" || len(st.Files) == 0
}

// Run executes one workflow run. Steps already completed under runID are
// replayed from their checkpoints. An error means no outcome record was
// written by this call.
func (d *Driver) Run(ctx context.Context, runID string, ev Event) (res *Result, err error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	steps, err := d.journal(runID)
	if err != nil {
		return nil, err
	}

	logger := d.logger.WithTraceID(runID)
	start := time.Now()
	logger.WorkflowStart(FunctionName, ev.ProjectID)

	ctx, span := d.startRunSpan(ctx, runID, ev)
	status := "error"
	defer func() {
		d.endRunSpan(span, status, err)
		logger.WorkflowComplete(FunctionName, time.Since(start), status)
	}()

	// Sandbox.
	var sandboxID string
	err = d.traced(ctx, StepSandboxID, func(ctx context.Context) error {
		var err error
		sandboxID, err = checkpoint.Run(ctx, steps, StepSandboxID, func(ctx context.Context) (string, error) {
			return d.provision(ctx, logger)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	// History.
	var history []llm.Message
	err = d.traced(ctx, StepHistory, func(ctx context.Context) error {
		var err error
		history, err = checkpoint.Run(ctx, steps, StepHistory, func(ctx context.Context) ([]llm.Message, error) {
			return d.previousMessages(ctx, ev.ProjectID)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	// Agent loop.
	st := agent.NewState()
	codeAgent := &agent.Agent{
		Name:        CodeAgentName,
		Description: "An expert coding agent",
		System:      prompt.Coding,
		Provider:    d.model,
		Tools:       tools.NewSet(d.sandboxes, sandboxID, logger),
		OnResponse:  agent.NewTracker(logger.WithComponent("agent")).OnResponse,
	}
	network := &agent.Network{
		Name:    NetworkName,
		Agents:  []*agent.Agent{codeAgent},
		MaxIter: d.opts.MaxIter,
		Router:  agent.RunUntilDone(codeAgent),
		Logger:  logger,
	}
	err = d.traced(ctx, NetworkName, func(ctx context.Context) error {
		_, err := network.Run(ctx, steps, ev.Value, st, history)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Error("Agent network failed", map[string]interface{}{"error": err.Error()})
	}

	failed := IsError(st)

	// Post-processing.
	title, response := FallbackTitle, FallbackResponse
	if !failed {
		title, err = d.postProcess(ctx, steps, TitleAgentName, "A agent that generates a title for a code fragment", prompt.FragmentTitle, st.Summary, FallbackTitle, logger)
		if err != nil {
			return nil, err
		}
		response, err = d.postProcess(ctx, steps, ResponseAgentName, "A agent that generates a response to the user", prompt.Response, st.Summary, FallbackResponse, logger)
		if err != nil {
			return nil, err
		}
	}

	// URL.
	var url string
	err = d.traced(ctx, StepSandboxURL, func(ctx context.Context) error {
		var err error
		url, err = checkpoint.Run(ctx, steps, StepSandboxURL, func(ctx context.Context) (string, error) {
			env, err := d.sandboxes.Connect(ctx, sandboxID)
			if err != nil {
				return "", err
			}
			return sandbox.PublicURL(env, d.opts.Port), nil
		})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Error("Failed to resolve sandbox URL", map[string]interface{}{
			"sandbox": sandboxID,
			"error":   err.Error(),
		})
		failed = true
	}

	// Commit.
	outcome := store.Outcome{RunID: runID, ProjectID: ev.ProjectID, Type: store.TypeError, Content: ErrorMessage}
	if !failed {
		outcome = store.Outcome{
			RunID:      runID,
			ProjectID:  ev.ProjectID,
			Type:       store.TypeResult,
			Content:    response,
			Title:      title,
			Files:      st.Files,
			SandboxURL: url,
		}
	}
	var messageID string
	err = d.traced(ctx, StepSaveResult, func(ctx context.Context) error {
		var err error
		messageID, err = checkpoint.Run(ctx, steps, StepSaveResult, func(ctx context.Context) (string, error) {
			m, err := d.store.CreateOutcome(ctx, outcome)
			if err != nil {
				return "", err
			}
			return m.ID, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	status = "success"
	if failed {
		status = "failed"
	}
	return &Result{
		URL:           url,
		Files:         st.Files,
		Summary:       st.Summary,
		Progress:      st.Progress,
		CurrentStatus: st.CurrentStatus,
		IsError:       failed,
		MessageID:     messageID,
	}, nil
}

func (d *Driver) journal(runID string) (*checkpoint.Journal, error) {
	if d.opts.RunsDir == "" {
		return nil, fmt.Errorf("runs directory is not configured")
	}
	cs, err := checkpoint.OpenRun(d.opts.RunsDir, runID)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewJournal(cs, d.logger.WithTraceID(runID)), nil
}

// provision creates the sandbox and sets its lifetime. Any failure is a
// *sandbox.ProvisionError.
func (d *Driver) provision(ctx context.Context, logger *logging.Logger) (string, error) {
	env, err := d.sandboxes.Create(ctx, d.opts.Template)
	if err != nil {
		logger.Error("Failed to create sandbox", map[string]interface{}{"error": err.Error()})
		var perr *sandbox.ProvisionError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", &sandbox.ProvisionError{Template: d.opts.Template, Err: err}
	}
	if err := d.sandboxes.SetTimeout(ctx, env.ID(), d.opts.Timeout); err != nil {
		logger.Error("Failed to set sandbox timeout", map[string]interface{}{"error": err.Error()})
		return "", &sandbox.ProvisionError{Template: d.opts.Template, Err: err}
	}
	logger.Info("Sandbox created", map[string]interface{}{
		"sandbox": env.ID(),
		"timeout": d.opts.Timeout.String(),
	})
	return env.ID(), nil
}

// previousMessages returns the project's recent messages, newest first, as
// conversation entries.
func (d *Driver) previousMessages(ctx context.Context, projectID string) ([]llm.Message, error) {
	msgs, err := d.store.RecentMessages(ctx, projectID, d.opts.HistoryWindow)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == store.RoleAssistant {
			role = "assistant"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

// postProcess runs a single-shot agent over the summary. A model failure
// yields the fallback text.
func (d *Driver) postProcess(ctx context.Context, steps *checkpoint.Journal, name, description, system, summary, fallback string, logger *logging.Logger) (string, error) {
	a := &agent.Agent{Name: name, Description: description, System: system, Provider: d.model}

	text := fallback
	err := d.traced(ctx, name, func(ctx context.Context) error {
		resp, err := a.RunOnce(ctx, steps, summary)
		if err != nil {
			return err
		}
		text = agent.ExtractText(resp.Output, fallback)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		logger.Warn("Post-processing failed, using fallback", map[string]interface{}{
			"agent": name,
			"error": err.Error(),
		})
		return fallback, nil
	}
	return text, nil
}

package main

import (
	"fmt"

	"github.com/vinayprograms/codeagent/internal/config"
	"github.com/vinayprograms/codeagent/internal/llm"
	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/sandbox"
	"github.com/vinayprograms/codeagent/internal/store"
	"github.com/vinayprograms/codeagent/internal/workflow"
)

// runtime holds the dependencies commands share.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     *store.SQLiteStore
	sandboxes *sandbox.LocalProvider
}

func loadConfig(g *Globals) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.Config != "" {
		cfg, err = config.LoadFile(g.Config)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	return cfg, nil
}

func openRuntime(g *Globals) (*runtime, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.Log.Level))

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	sandboxes, err := sandbox.NewLocalProvider(sandbox.LocalConfig{
		Root:      config.ExpandPath(cfg.Sandbox.Root),
		Templates: config.ExpandPath(cfg.Sandbox.Templates),
		Workdir:   cfg.Sandbox.Workdir,
		Shell:     cfg.Sandbox.Shell,
		Domain:    cfg.Sandbox.Domain,
		Timeout:   cfg.SandboxTimeout(),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, store: st, sandboxes: sandboxes}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// driver builds the workflow driver with the configured model.
func (r *runtime) driver() (*workflow.Driver, error) {
	model, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    r.cfg.LLM.Provider,
		Model:       r.cfg.LLM.Model,
		APIKey:      r.cfg.GetAPIKey(),
		MaxTokens:   r.cfg.LLM.MaxTokens,
		BaseURL:     r.cfg.LLM.BaseURL,
		RetryConfig: llm.ParseRetryConfig(r.cfg.LLM.MaxRetries, r.cfg.LLM.RetryBackoff),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	return workflow.NewDriver(r.sandboxes, r.store, model, r.logger, workflow.Options{
		Template:      r.cfg.Agent.Template,
		Timeout:       r.cfg.SandboxTimeout(),
		Port:          r.cfg.Sandbox.Port,
		MaxIter:       r.cfg.Agent.MaxIterations,
		HistoryWindow: r.cfg.Agent.HistoryWindow,
		RunsDir:       r.cfg.RunsDir(),
	}), nil
}

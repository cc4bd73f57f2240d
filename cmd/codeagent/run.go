package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/events"
	"github.com/vinayprograms/codeagent/internal/store"
	"github.com/vinayprograms/codeagent/internal/workflow"
)

// event returns the workflow event from the event file or the flags.
func (c *RunCmd) event() (workflow.Event, error) {
	var ev workflow.Event
	if c.Event != "" {
		data, err := os.ReadFile(c.Event)
		if err != nil {
			return ev, fmt.Errorf("failed to read event file: %w", err)
		}
		// JSON is valid YAML, so one decoder covers both.
		if err := yaml.Unmarshal(data, &ev); err != nil {
			return ev, fmt.Errorf("failed to parse event file: %w", err)
		}
	}
	if c.Project != "" {
		ev.ProjectID = c.Project
	}
	if c.Prompt != "" {
		ev.Value = c.Prompt
	}
	return ev, ev.Validate()
}

// Run executes the workflow and prints its result.
func (c *RunCmd) Run(g *Globals) error {
	ev, err := c.event()
	if err != nil {
		return err
	}

	rt, err := openRuntime(g)
	if err != nil {
		return err
	}
	defer rt.Close()

	d, err := rt.driver()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := c.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	// A run resumed from checkpoints already has its prompt recorded.
	cs, err := checkpoint.OpenRun(rt.cfg.RunsDir(), runID)
	if err != nil {
		return err
	}
	if cs.Len() == 0 {
		if _, err := rt.store.CreateMessage(ctx, ev.ProjectID, store.RoleUser, ev.Value); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "run id: %s\n", runID)
	res, err := d.Run(ctx, runID, ev)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// Run records the prompt and publishes the event.
func (c *SendCmd) Run(g *Globals) error {
	ev := workflow.Event{ProjectID: c.Project, Value: c.Prompt}
	if err := ev.Validate(); err != nil {
		return err
	}

	rt, err := openRuntime(g)
	if err != nil {
		return err
	}
	defer rt.Close()

	nc, err := nats.Connect(rt.cfg.NATS.URL, nats.Name("codeagent-send"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	ctx := context.Background()
	if _, err := rt.store.CreateMessage(ctx, ev.ProjectID, store.RoleUser, ev.Value); err != nil {
		return err
	}
	runID, err := events.NewPublisher(nc, rt.cfg.NATS.Subject).Send(ctx, c.RunID, ev)
	if err != nil {
		return err
	}
	fmt.Println(runID)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

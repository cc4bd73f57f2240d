package events

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/workflow"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs map[string]workflow.Event
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, runID string, ev workflow.Event) (*workflow.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = map[string]workflow.Event{}
	}
	r.runs[runID] = ev
	if r.err != nil {
		return nil, r.err
	}
	return &workflow.Result{URL: "https://3000-x.sandbox.localhost"}, nil
}

func quietLogger() *logging.Logger {
	l := logging.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"projectId":"p1","value":"Build a todo app"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.ProjectID != "p1" || m.Value != "Build a todo app" {
		t.Errorf("unexpected message: %+v", m)
	}
	if m.RunID == "" {
		t.Error("expected a generated run id")
	}

	m, _ = Decode([]byte(`{"runId":"run-7","projectId":"p1","value":"x"}`))
	if m.RunID != "run-7" {
		t.Errorf("run id = %q, want run-7", m.RunID)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"missing project": `{"value":"x"}`,
		"empty value":     `{"projectId":"p1","value":""}`,
		"too long":        `{"projectId":"p1","value":"` + strings.Repeat("a", 10001) + `"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMessage_Event(t *testing.T) {
	ev := Message{RunID: "r", ProjectID: "p1", Value: "v"}.Event()
	if ev.ProjectID != "p1" || ev.Value != "v" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSubscriber_HandleRunsWorkflow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSubscriber(nil, runner, SubscriberConfig{}, quietLogger())

	s.handle(context.Background(), &nats.Msg{Data: []byte(`{"runId":"r1","projectId":"p1","value":"Build a todo app"}`)})
	s.handle(context.Background(), &nats.Msg{Data: []byte(`{"projectId":"p1"}`)})

	if len(runner.runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.runs))
	}
	if ev := runner.runs["r1"]; ev.ProjectID != "p1" || ev.Value != "Build a todo app" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSubscriber_HandleRunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("provision failed")}
	s := NewSubscriber(nil, runner, SubscriberConfig{}, quietLogger())

	// No reply subject, so nothing is sent; the failure is only logged.
	s.handle(context.Background(), &nats.Msg{Data: []byte(`{"runId":"r1","projectId":"p1","value":"x"}`)})
	if _, ok := runner.runs["r1"]; !ok {
		t.Error("runner was not called")
	}
}

func TestNewSubscriber_Defaults(t *testing.T) {
	s := NewSubscriber(nil, &fakeRunner{}, SubscriberConfig{}, nil)
	if s.cfg.Subject != DefaultSubject || s.cfg.MaxConcurrent != 1 {
		t.Errorf("unexpected defaults: %+v", s.cfg)
	}
}

func TestInflight_RejectsAfterClose(t *testing.T) {
	var f inflight
	if !f.start() {
		t.Fatal("start rejected before close")
	}

	waited := make(chan struct{})
	go func() {
		f.closeAndWait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("closeAndWait returned with a handler in flight")
	case <-time.After(50 * time.Millisecond):
	}
	f.done()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("closeAndWait did not return after the last handler finished")
	}
	if f.start() {
		t.Error("start admitted a handler after close")
	}
}

func TestInflight_ConcurrentStartAndClose(t *testing.T) {
	var f inflight
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.start() {
				f.done()
			}
		}()
	}
	f.closeAndWait()
	wg.Wait()
	if f.start() {
		t.Error("start admitted a handler after close")
	}
}

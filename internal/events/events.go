// Package events carries workflow trigger events over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/workflow"
)

// DefaultSubject is the subject workflow events are sent on.
const DefaultSubject = "code-agent.run"

// FlushTimeout bounds Send when ctx has no deadline.
const FlushTimeout = 5 * time.Second

// Message is the wire form of a trigger event.
type Message struct {
	RunID     string `json:"runId,omitempty"`
	ProjectID string `json:"projectId"`
	Value     string `json:"value"`
}

// Event returns the workflow event carried by m.
func (m Message) Event() workflow.Event {
	return workflow.Event{ProjectID: m.ProjectID, Value: m.Value}
}

// Decode parses and validates a trigger message. A missing run id is
// assigned a fresh one.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("invalid event: %w", err)
	}
	if err := m.Event().Validate(); err != nil {
		return Message{}, fmt.Errorf("invalid event: %w", err)
	}
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	return m, nil
}

// Reply is sent back when a trigger message carries a reply subject.
type Reply struct {
	RunID  string           `json:"runId"`
	Result *workflow.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, runID string, ev workflow.Event) (*workflow.Result, error)
}

// Publisher sends trigger events.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a publisher on subject.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// Send publishes ev and returns the run id it was given.
func (p *Publisher) Send(ctx context.Context, runID string, ev workflow.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	data, err := json.Marshal(Message{RunID: runID, ProjectID: ev.ProjectID, Value: ev.Value})
	if err != nil {
		return "", err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return "", fmt.Errorf("failed to publish event: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return "", fmt.Errorf("failed to flush event: %w", err)
	}
	return runID, nil
}

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	Subject       string
	Queue         string
	MaxConcurrent int
}

// Subscriber runs a workflow for every trigger message.
type Subscriber struct {
	nc     *nats.Conn
	runner Runner
	cfg    SubscriberConfig
	logger *logging.Logger
}

// NewSubscriber creates a subscriber.
func NewSubscriber(nc *nats.Conn, runner Runner, cfg SubscriberConfig, logger *logging.Logger) *Subscriber {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = logging.New()
	}
	return &Subscriber{nc: nc, runner: runner, cfg: cfg, logger: logger.WithComponent("events")}
}

// Serve handles messages until ctx is done, then drains the subscription
// and waits for runs in flight.
func (s *Subscriber) Serve(ctx context.Context) error {
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	runs := &inflight{}

	sub, err := s.nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, func(msg *nats.Msg) {
		if ctx.Err() != nil || !runs.start() {
			return
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			runs.done()
			return
		}
		go func() {
			defer func() {
				<-sem
				runs.done()
			}()
			s.handle(ctx, msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.logger.Info("Listening for events", map[string]interface{}{
		"subject": s.cfg.Subject,
		"queue":   s.cfg.Queue,
	})

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.logger.Warn("Failed to drain subscription", map[string]interface{}{"error": err.Error()})
	}
	runs.closeAndWait()
	return nil
}

// inflight counts running handlers. Once closed it admits no new ones, so
// Add never races with Wait.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) done() { f.wg.Done() }

func (f *inflight) closeAndWait() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

func (s *Subscriber) handle(ctx context.Context, msg *nats.Msg) {
	m, err := Decode(msg.Data)
	if err != nil {
		s.logger.Warn("Dropping event", map[string]interface{}{"error": err.Error()})
		s.reply(msg, Reply{Error: err.Error()})
		return
	}

	res, err := s.runner.Run(ctx, m.RunID, m.Event())
	r := Reply{RunID: m.RunID, Result: res}
	if err != nil {
		s.logger.Error("Workflow run failed", map[string]interface{}{
			"run_id": m.RunID,
			"error":  err.Error(),
		})
		r.Error = err.Error()
	}
	s.reply(msg, r)
}

func (s *Subscriber) reply(msg *nats.Msg, r Reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("Failed to send reply", map[string]interface{}{"error": err.Error()})
	}
}

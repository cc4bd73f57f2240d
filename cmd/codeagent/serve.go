package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/codeagent/internal/events"
	"github.com/vinayprograms/codeagent/internal/logging"
	"github.com/vinayprograms/codeagent/internal/sandbox"
)

// Run serves workflow events until interrupted.
func (c *ServeCmd) Run(g *Globals) error {
	rt, err := openRuntime(g)
	if err != nil {
		return err
	}
	defer rt.Close()

	d, err := rt.driver()
	if err != nil {
		return err
	}

	nc, err := nats.Connect(rt.cfg.NATS.URL,
		nats.Name("codeagent"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				rt.logger.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			rt.logger.Info("NATS reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reapLoop(ctx, rt.sandboxes, c.ReapInterval, rt.logger)

	sub := events.NewSubscriber(nc, d, events.SubscriberConfig{
		Subject:       rt.cfg.NATS.Subject,
		Queue:         rt.cfg.NATS.Queue,
		MaxConcurrent: rt.cfg.NATS.MaxConcurrent,
	}, rt.logger)
	return sub.Serve(ctx)
}

// reapLoop removes expired sandboxes every interval until ctx is done.
func reapLoop(ctx context.Context, p *sandbox.LocalProvider, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Reap(ctx)
			if err != nil {
				logger.Warn("Sandbox reap failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if n > 0 {
				logger.Info("Removed expired sandboxes", map[string]interface{}{"count": n})
			}
		}
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultMaxRetries  = 5
	defaultInitBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second
)

type failure int

const (
	failPermanent failure = iota
	failTransient
	failBilling
)

// Provider SDKs surface status codes only in error text, so failures are
// classified by substring.
var (
	billingMarkers = []string{"billing", "payment", "quota exceeded", "402"}

	transientMarkers = []string{
		"rate limit", "too many requests", "429", "resource exhausted", "overloaded",
		"500", "502", "503", "504",
		"internal server error", "service unavailable", "temporarily unavailable",
	}
)

func classify(err error) failure {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failPermanent
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, billingMarkers):
		return failBilling
	case containsAny(msg, transientMarkers):
		return failTransient
	}
	return failPermanent
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// withDefaults fills unset fields.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitBackoff <= 0 {
		c.InitBackoff = defaultInitBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// delay is the wait before retry number attempt+1: InitBackoff doubled per
// attempt, capped at MaxBackoff.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := c.InitBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// retry calls fn until it succeeds, fails permanently, or the retry budget
// is spent. Billing failures are never retried.
func retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		switch classify(err) {
		case failBilling:
			return fmt.Errorf("billing/payment error (fatal): %w", err)
		case failPermanent:
			return fmt.Errorf("generate failed: %w", err)
		}
		if attempt == cfg.MaxRetries {
			return fmt.Errorf("generate failed after %d retries: %w", cfg.MaxRetries, err)
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

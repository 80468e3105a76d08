package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Caller wraps calls to an unreliable upstream API. It is the single
// serialization point for all upstream traffic in the process: every physical
// call reserves a slot so that no two calls are issued closer together than
// the configured minimum interval, regardless of how many targets are being
// synchronized concurrently.
type Caller struct {
	minInterval  time.Duration
	maxRetries   int
	initialDelay time.Duration
	breaker      *Breaker

	mu       sync.Mutex
	nextSlot time.Time

	now   func() time.Time                           // for testing
	sleep func(context.Context, time.Duration) error // for testing
}

// CallerOptions configures a Caller. Zero values fall back to the defaults
// matching the upstream APIs' published limits.
type CallerOptions struct {
	MinInterval  time.Duration // floor between physical calls (default 1s)
	MaxRetries   int           // attempts for transient failures (default 5)
	InitialDelay time.Duration // first backoff step (default 2s)
	Breaker      *Breaker      // optional; guards the physical call
}

// NewCaller creates a Caller with the given options.
func NewCaller(opts CallerOptions) *Caller {
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}
	return &Caller{
		minInterval:  opts.MinInterval,
		maxRetries:   opts.MaxRetries,
		initialDelay: opts.InitialDelay,
		breaker:      opts.Breaker,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Do runs fn, retrying transient failures with exponential backoff up to the
// configured maximum. Permanent failures are surfaced immediately with the
// cause wrapped; exhausting all retries wraps the last cause annotated with
// the retry count. Every physical call honors the global minimum interval.
func (c *Caller) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.waitTurn(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		err := c.call(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		var delay time.Duration
		switch Classify(err) {
		case ClassPermanent:
			return fmt.Errorf("%s: permanent upstream failure: %w", op, err)
		case ClassRateLimited:
			// The server asked for a cool-down; back off much harder than
			// for a generic transient error.
			delay = c.initialDelay * time.Duration(pow(4, attempt))
		default:
			delay = c.initialDelay * time.Duration(pow(2, attempt-1))
		}

		if attempt < c.maxRetries {
			slog.Warn("upstream call failed, retrying",
				"op", op, "attempt", attempt, "max_retries", c.maxRetries,
				"backoff", delay, "error", err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return fmt.Errorf("%s: %w", op, serr)
			}
		}
	}

	return fmt.Errorf("%s: failed after %d retries: %w", op, c.maxRetries, lastErr)
}

func (c *Caller) call(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	c.breaker.Record(err)
	return err
}

// waitTurn reserves the next physical-call slot. The reservation happens
// under the lock; the sleep happens outside it so concurrent callers queue up
// behind each other without serializing their actual work.
func (c *Caller) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	now := c.now()
	slot := c.nextSlot
	if slot.Before(now) {
		slot = now
	}
	c.nextSlot = slot.Add(c.minInterval)
	c.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pow(base, exp int) int64 {
	result := int64(1)
	for range exp {
		result *= int64(base)
	}
	return result
}

package sked

import (
	"context"
	"time"

	logx "sked/pkg/logx"
)

const (
	defaultLagThreshold = time.Second
	defaultLagWarnEvery = 10 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock. Tests pass a skedtest clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithContext sets the parent of the context handed to task bodies.
// Canceling it does not stop the engine; use Close or a Shutdown for that.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		if ctx != nil {
			e.parent = ctx
		}
	}
}

// WithObserver registers a run observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithShutdown attaches a shutdown coordinator used by AwaitShutdown.
func WithShutdown(sd *Shutdown) Option {
	return func(e *Engine) { e.shutdown = sd }
}

// WithAwaitShutdown attaches sd and makes Close block until sd has stopped
// before tearing down the worker.
func WithAwaitShutdown(sd *Shutdown) Option {
	return func(e *Engine) {
		e.shutdown = sd
		e.awaitShutdown = sd != nil
	}
}

// WithPanicPropagation disables per-body panic recovery. A panicking body then
// takes down the worker goroutine and the process with it.
func WithPanicPropagation(enabled bool) Option {
	return func(e *Engine) { e.propagatePanics = enabled }
}

// WithLagThreshold sets how late a batch may start before a (rate limited)
// warning is logged. A negative value disables the warning.
func WithLagThreshold(d time.Duration) Option {
	return func(e *Engine) { e.lagThreshold = d }
}

package sked

import (
	"context"
	"fmt"
	"time"
)

// ID identifies a task within one Engine. IDs are never reused while the
// Engine is alive.
type ID uint64

// Result is what a task body reports after each run.
type Result int

const (
	// Reschedule keeps the task and queues its next occurrence.
	Reschedule Result = iota
	// Done removes the task from the engine.
	Done
)

func (r Result) String() string {
	switch r {
	case Reschedule:
		return "reschedule"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Func is a task body. ctx is canceled when the engine closes.
type Func func(ctx context.Context) Result

// Config is a finished task definition accepted by Engine.Submit.
//
// OneShot is the task's declared kind. It decides what happens when the body
// panics (a one-shot task is dropped, a recurring one is rescheduled); on a
// normal return the body's Result wins.
type Config struct {
	Name    string
	Period  Period
	OneShot bool
	Body    Func
}

func (c Config) validate() error {
	if c.Body == nil {
		return ErrNilBody
	}
	if err := c.Period.Validate(); err != nil {
		return err
	}
	return nil
}

// task is a registry entry.
type task struct {
	id   ID
	cfg  Config
	runs uint64
}

func (t *task) label() string {
	if t.cfg.Name != "" {
		return t.cfg.Name
	}
	return fmt.Sprintf("task-%d", t.id)
}

// Run describes one body execution. Observers receive it on the worker
// goroutine after the body returns.
type Run struct {
	TaskID   ID
	Name     string
	Period   Period
	Due      time.Time
	Started  time.Time
	Duration time.Duration
	Result   Result
	// Panic holds the recovered panic value rendered as text, if any.
	Panic string
}

// Observer receives run notifications. Implementations must not block; they
// run on the dispatch goroutine.
type Observer interface {
	ObserveRun(r Run)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Run)

func (f ObserverFunc) ObserveRun(r Run) { f(r) }

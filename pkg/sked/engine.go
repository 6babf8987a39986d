package sked

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "sked/pkg/logx"
)

// ErrNoShutdown is returned by AwaitShutdown when no coordinator is attached.
var ErrNoShutdown = errors.New("sked: no shutdown coordinator attached")

// Engine runs tasks on a single background worker goroutine.
//
// The worker sleeps until the earliest due instant, runs every task due at
// exactly that instant one after another, requeues the recurring ones and
// goes back to sleep. Submitting a task wakes the worker so a sooner deadline
// is picked up immediately.
//
// Bodies run sequentially; a slow body delays every task behind it.
type Engine struct {
	clock           Clock
	log             logx.Logger
	observers       []Observer
	shutdown        *Shutdown
	awaitShutdown   bool
	propagatePanics bool
	lagThreshold    time.Duration
	lagLimiter      *rate.Limiter
	parent          context.Context

	// ctx is handed to bodies; canceled on Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[ID]*task
	queue   *dueQueue
	lastID  ID
	running bool

	// wake is the notify side of the worker's wait. Buffered so that a signal
	// sent while the worker is busy is seen on its next wait.
	wake chan struct{}
	done chan struct{}

	stopOnce sync.Once
}

// New creates an Engine and starts its worker.
func New(opts ...Option) *Engine {
	e := newEngine(opts...)
	e.start()
	return e
}

// NewWith registers cfgs before the worker starts, so they are all queued
// against the same reading of the clock. On error no worker is started.
func NewWith(cfgs []Config, opts ...Option) (*Engine, error) {
	e := newEngine(opts...)
	now := e.clock.Now()
	for i, c := range cfgs {
		if err := c.validate(); err != nil {
			e.cancel()
			return nil, fmt.Errorf("task %d (%s): %w", i, c.Name, err)
		}
		e.insertLocked(c, now)
	}
	e.start()
	return e, nil
}

func newEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:        SystemClock{},
		log:          logx.Nop(),
		parent:       context.Background(),
		lagThreshold: defaultLagThreshold,
		tasks:        map[ID]*task{},
		queue:        newDueQueue(),
		running:      true,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	e.lagLimiter = rate.NewLimiter(rate.Every(defaultLagWarnEvery), 1)
	e.ctx, e.cancel = context.WithCancel(e.parent)
	return e
}

func (e *Engine) start() {
	e.log.Debug("engine started", logx.Int("tasks", len(e.tasks)))
	go e.run()
}

// Submit registers cfg and queues its first occurrence relative to the
// engine clock.
func (e *Engine) Submit(cfg Config) (ID, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return 0, ErrClosed
	}
	t := e.insertLocked(cfg, e.clock.Now())
	next, _ := e.queue.next(t.id)
	e.mu.Unlock()

	e.notify()
	e.log.Debug("task submitted",
		logx.Uint64("task", uint64(t.id)),
		logx.String("name", t.label()),
		logx.String("period", cfg.Period.String()),
		logx.Time("next", next),
	)
	return t.id, nil
}

func (e *Engine) insertLocked(cfg Config, now time.Time) *task {
	e.lastID++
	t := &task{id: e.lastID, cfg: cfg}
	e.tasks[t.id] = t
	e.queue.push(cfg.Period.Next(now), t.id)
	return t
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Stop asks the worker to exit without waiting for it. Pending tasks are
// discarded. A body that wants to end the engine must call Stop, not Close.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.cancel()
		e.notify()
	})
}

// Close stops the engine and waits for the worker to exit. With
// WithAwaitShutdown it first blocks until the shutdown coordinator fires.
// If a batch is running, it finishes before the worker exits.
func (e *Engine) Close() error {
	if e.awaitShutdown && e.shutdown != nil {
		_ = e.shutdown.Wait(context.Background())
	}
	e.Stop()
	<-e.done
	return nil
}

// AwaitShutdown blocks until the attached Shutdown fires or ctx is done, then
// closes the engine.
func (e *Engine) AwaitShutdown(ctx context.Context) error {
	if e.shutdown == nil {
		return ErrNoShutdown
	}
	err := e.shutdown.Wait(ctx)
	e.log.Info("shutdown requested; stopping engine")
	e.Stop()
	<-e.done
	return err
}

// Done is closed once the worker has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run() {
	defer close(e.done)
	defer e.discard()

	for {
		e.mu.Lock()
		if !e.running {
			e.mu.Unlock()
			return
		}
		deadline, ok := e.queue.peek()
		e.mu.Unlock()

		// An empty queue waits for a wake signal only.
		var (
			timer  Timer
			timerC <-chan time.Time
		)
		if ok {
			timer = timerAt(e.clock, deadline)
			timerC = timer.C()
		}
		select {
		case <-timerC:
		case <-e.wake:
		}
		if timer != nil {
			timer.Stop()
		}

		if !e.isRunning() {
			return
		}
		if !ok {
			continue
		}
		now := e.clock.Now()
		if now.Before(deadline) {
			continue
		}
		e.dispatch(deadline, now)
	}
}

// dispatch runs every task queued at exactly due. Recurring tasks are requeued
// only after the whole batch has run, so none can be picked twice in one tick.
func (e *Engine) dispatch(due, now time.Time) {
	e.mu.Lock()
	batch := e.queue.popEqual(due)
	runs := make([]*task, 0, len(batch))
	for _, ent := range batch {
		t, ok := e.tasks[ent.id]
		if !ok {
			e.log.Debug("queued task missing from registry; skipping", logx.Uint64("task", uint64(ent.id)))
			continue
		}
		runs = append(runs, t)
	}
	e.mu.Unlock()

	if len(runs) == 0 {
		return
	}
	e.warnLag(due, now, len(runs))

	results := make([]Result, len(runs))
	for i, t := range runs {
		results[i] = e.execute(t, due)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range runs {
		t.runs++
		if results[i] == Done {
			delete(e.tasks, t.id)
			continue
		}
		if !e.running {
			continue
		}
		e.queue.push(t.cfg.Period.Next(now), t.id)
	}
}

func (e *Engine) execute(t *task, due time.Time) Result {
	started := e.clock.Now()
	res, panicMsg := e.call(t)
	if res != Done {
		res = Reschedule
	}

	if len(e.observers) > 0 {
		r := Run{
			TaskID:   t.id,
			Name:     t.label(),
			Period:   t.cfg.Period,
			Due:      due,
			Started:  started,
			Duration: e.clock.Now().Sub(started),
			Result:   res,
			Panic:    panicMsg,
		}
		for _, o := range e.observers {
			o.ObserveRun(r)
		}
	}
	return res
}

func (e *Engine) call(t *task) (res Result, panicMsg string) {
	if !e.propagatePanics {
		defer func() {
			if p := recover(); p != nil {
				panicMsg = fmt.Sprint(p)
				res = Reschedule
				if t.cfg.OneShot {
					res = Done
				}
				e.log.Error("task panicked",
					logx.Uint64("task", uint64(t.id)),
					logx.String("name", t.label()),
					logx.String("panic", panicMsg),
					logx.String("then", res.String()),
					logx.Stack(string(debug.Stack())),
				)
			}
		}()
	}
	return t.cfg.Body(e.ctx), ""
}

func (e *Engine) warnLag(due, now time.Time, n int) {
	if e.lagThreshold < 0 {
		return
	}
	lag := now.Sub(due)
	if lag <= e.lagThreshold || !e.lagLimiter.Allow() {
		return
	}
	e.log.Warn("dispatch running late",
		logx.Duration("lag", lag),
		logx.Time("due", due),
		logx.Int("batch", n),
	)
}

// discard drops every pending task once the worker has stopped.
func (e *Engine) discard() {
	e.mu.Lock()
	n := len(e.tasks)
	e.running = false
	e.tasks = map[ID]*task{}
	e.queue.clear()
	e.mu.Unlock()
	e.cancel()
	e.log.Debug("engine stopped", logx.Int("discarded", n))
}

// Len returns the number of registered tasks.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// NextRun returns the pending due instant of a task. ok is false for unknown
// tasks and for tasks whose batch is currently running.
func (e *Engine) NextRun(id ID) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[id]; !ok {
		return time.Time{}, false
	}
	return e.queue.next(id)
}

// TaskInfo is a read-only view of a registered task.
type TaskInfo struct {
	ID     ID
	Name   string
	Period Period
	Next   time.Time // zero while the task's batch is running
	Runs   uint64
}

// Snapshot is a point-in-time view of an Engine, for diagnostics.
type Snapshot struct {
	Running bool
	Tasks   []TaskInfo
}

// Snapshot lists registered tasks ordered by next due instant, then ID.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	snap := Snapshot{Running: e.running, Tasks: make([]TaskInfo, 0, len(e.tasks))}
	for id, t := range e.tasks {
		next, _ := e.queue.next(id)
		snap.Tasks = append(snap.Tasks, TaskInfo{
			ID:     id,
			Name:   t.label(),
			Period: t.cfg.Period,
			Next:   next,
			Runs:   t.runs,
		})
	}
	e.mu.Unlock()

	sort.Slice(snap.Tasks, func(i, j int) bool {
		a, b := snap.Tasks[i], snap.Tasks[j]
		if !a.Next.Equal(b.Next) {
			return a.Next.Before(b.Next)
		}
		return a.ID < b.ID
	})
	return snap
}

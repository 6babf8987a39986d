package storage

import (
	"context"
	"sync/atomic"
	"time"

	logx "sked/pkg/logx"
	"sked/pkg/sked"
)

const (
	DefaultRecorderQueue = 256
	recorderFlushTimeout = 2 * time.Second
)

// Recorder persists engine runs without blocking the dispatch goroutine.
// ObserveRun only enqueues; Run drains the queue into the Store. When the
// queue is full the run is dropped and counted.
type Recorder struct {
	store Store
	log   logx.Logger
	queue chan RunRecord

	dropped atomic.Uint64
	written atomic.Uint64
}

var _ sked.Observer = (*Recorder)(nil)

func NewRecorder(store Store, queue int, log logx.Logger) *Recorder {
	if queue <= 0 {
		queue = DefaultRecorderQueue
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, log: log, queue: make(chan RunRecord, queue)}
}

func (r *Recorder) ObserveRun(run sked.Run) {
	select {
	case r.queue <- NewRunRecord(run):
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warn("run history queue full; dropping", logx.Uint64("dropped", n), logx.String("task", run.Name))
		}
	}
}

// Run writes queued runs until ctx is done, then flushes whatever is still
// queued with a short deadline.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), recorderFlushTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec RunRecord) {
	if err := r.store.AppendRun(ctx, rec); err != nil {
		r.log.Warn("run history write failed", logx.String("task", rec.Task), logx.Err(err))
		return
	}
	r.written.Add(1)
}

// Dropped is the number of runs discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written is the number of runs persisted.
func (r *Recorder) Written() uint64 { return r.written.Load() }

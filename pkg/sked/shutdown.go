package sked

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	logx "sked/pkg/logx"
)

// Shutdown turns SIGINT/SIGTERM into a stop flag that any number of goroutines
// can wait on. Create one per process, at startup, and hand it to every Engine
// that should honor it (WithShutdown / WithAwaitShutdown).
type Shutdown struct {
	log logx.Logger

	mu      sync.Mutex
	stopped bool
	signal  os.Signal
	done    chan struct{}

	sigCh    chan os.Signal
	quit     chan struct{}
	stopOnce sync.Once
}

// ShutdownOption configures a Shutdown.
type ShutdownOption func(*Shutdown)

func WithShutdownLogger(log logx.Logger) ShutdownOption {
	return func(s *Shutdown) { s.log = log }
}

// WithoutSignals builds a coordinator that only stops through Trigger.
// Useful in tests and in hosts that own signal handling themselves.
func WithoutSignals() ShutdownOption {
	return func(s *Shutdown) { s.sigCh = nil }
}

// NewShutdown registers handlers for os.Interrupt and SIGTERM.
func NewShutdown(opts ...ShutdownOption) *Shutdown {
	s := &Shutdown{
		log:   logx.Nop(),
		done:  make(chan struct{}),
		sigCh: make(chan os.Signal, 1),
		quit:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.sigCh != nil {
		signal.Notify(s.sigCh, os.Interrupt, syscall.SIGTERM)
		go s.watch()
	}
	return s
}

func (s *Shutdown) watch() {
	select {
	case sig := <-s.sigCh:
		s.log.Info("termination signal received", logx.String("signal", sig.String()))
		s.stop(sig)
	case <-s.quit:
	}
}

// Trigger stops the coordinator as if a termination signal had arrived.
func (s *Shutdown) Trigger() { s.stop(nil) }

func (s *Shutdown) stop(sig os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.signal = sig
	close(s.done)
}

// Stopped reports whether a stop has been observed.
func (s *Shutdown) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Signal returns the signal that stopped the coordinator, or nil if it was
// triggered programmatically or is still running.
func (s *Shutdown) Signal() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signal
}

// Done is closed once a stop has been observed.
func (s *Shutdown) Done() <-chan struct{} { return s.done }

// Wait parks the caller until a stop is observed (nil) or ctx ends (ctx.Err()).
func (s *Shutdown) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop unregisters the signal handlers. The stop flag is left as is.
func (s *Shutdown) Stop() {
	s.stopOnce.Do(func() {
		if s.sigCh != nil {
			signal.Stop(s.sigCh)
		}
		close(s.quit)
	})
}

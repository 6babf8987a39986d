package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"sked/internal/runtime/supervisor"
	logx "sked/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
	ErrNoTarget  = errors.New("notification has no target")
)

const (
	historyMax  = 100
	sendTimeout = 10 * time.Second
)

type job struct {
	to   Target
	text string
}

// Service is safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender Sender
	cfg    Config
	lim    *rate.Limiter

	mu        sync.Mutex
	accepting bool
	queue     chan job
	sup       *supervisor.Supervisor
	inflight  sync.WaitGroup

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	queued, sent, failed, deduped, dropped atomic.Uint64
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	return &Service{
		log:    log,
		sender: sender,
		cfg:    cfg,
		// Burst equals the per-second rate so short spikes go out at once.
		lim:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		dedup: map[string]time.Time{},
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupMax <= 0 {
		cfg.DedupMax = 1000
	}
	return cfg
}

// Start launches the workers under a supervisor derived from ctx. Calling it
// twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))

	q := s.queue
	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.Go(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.work(c, q)
			return nil
		})
	}
}

// Stop refuses new notifications, lets the workers drain the queue and waits
// for them until ctx ends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return nil
	}
	s.accepting = false
	q, sup := s.queue, s.sup
	s.mu.Unlock()

	s.inflight.Wait()
	close(q)
	err := sup.Wait(ctx)
	if err != nil {
		sup.Cancel()
	}
	return err
}

// Notify enqueues n for every target. It never blocks on delivery.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(n.Targets) == 0 {
		return ErrNoTarget
	}

	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	text := prefixForPriority(n.Priority) + n.Text
	var errs []error
	for _, to := range n.Targets {
		if !s.dedupAllow(dedupKey(to, text), time.Now()) {
			s.deduped.Add(1)
			continue
		}
		select {
		case q <- job{to: to, text: text}:
			s.queued.Add(1)
		default:
			s.dropped.Add(1)
			errs = append(errs, fmt.Errorf("chat %d: %w", to.ChatID, ErrQueueFull))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) work(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	attempts := 1 + s.cfg.RetryMax
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if werr := s.lim.Wait(ctx); werr != nil {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = s.sender.Send(cctx, j.to, j.text)
		cancel()
		if err == nil {
			s.sent.Add(1)
			s.remember(j.text)
			return
		}
		s.log.Debug("notify send failed", logx.Int64("chat", j.to.ChatID), logx.Int("attempt", attempt), logx.Err(err))
		if attempt == attempts {
			break
		}
		t := time.NewTimer(retryDelay(s.cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	s.failed.Add(1)
	s.log.Warn("notification not delivered", logx.Int64("chat", j.to.ChatID), logx.Int("attempts", attempts), logx.Err(err))
}

// Stats returns the delivery counters.
func (s *Service) Stats() Stats {
	return Stats{
		Queued:  s.queued.Load(),
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
		Deduped: s.deduped.Load(),
		Dropped: s.dropped.Load(),
	}
}

// History lists recently delivered texts, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) remember(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

func (s *Service) dedupAllow(key string, now time.Time) bool {
	if s.cfg.DedupWindow <= 0 {
		return true
	}
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(s.cfg.DedupWindow)
	if len(s.dedup) > s.cfg.DedupMax {
		for k, until := range s.dedup {
			if !now.Before(until) {
				delete(s.dedup, k)
			}
		}
		// Still full: evict the entries closest to expiry.
		for len(s.dedup) > s.cfg.DedupMax {
			var (
				minKey string
				minT   time.Time
			)
			for k, t := range s.dedup {
				if minKey == "" || t.Before(minT) {
					minKey, minT = k, t
				}
			}
			delete(s.dedup, minKey)
		}
	}
	return true
}

func dedupKey(to Target, text string) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%d|%s", to.ChatID, to.ThreadID, text)
	return fmt.Sprintf("%x", h.Sum64())
}

func prefixForPriority(p int) string {
	switch {
	case p >= 9:
		return "🚨 "
	case p >= 7:
		return "⚠️ "
	default:
		return ""
	}
}

// retryDelay is the wait before attempt+1: base doubled per attempt, capped,
// with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}

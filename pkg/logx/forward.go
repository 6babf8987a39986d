package logx

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ForwardConfig copies entries at or above MinLevel to the Service's
// Forwarder, at most RatePerSec per second. MinLevel defaults to error.
type ForwardConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// Entry is one decoded log line.
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// Forwarder runs on the logging goroutine, so it must not block. Entries it
// logs itself are not forwarded again.
type Forwarder func(Entry)

// SetForwarder installs fn as the forward sink target; nil detaches it.
func (s *Service) SetForwarder(fn Forwarder) {
	if fn == nil {
		s.fwd.Store(nil)
		return
	}
	s.fwd.Store(&fn)
}

// Forwarded returns how many entries reached the Forwarder and how many
// were dropped by the rate limit.
func (s *Service) Forwarded() (sent, limited uint64) {
	return s.fwdSent.Load(), s.fwdLimited.Load()
}

// Text renders e for a chat message: level and message first, then fields in
// key order with the stack last. Values are cut at 300 bytes.
func (e Entry) Text() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString("] ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if k != "stack" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s=%s", k, clip(fmt.Sprint(e.Fields[k]), 300))
	}
	if st, ok := e.Fields["stack"]; ok {
		b.WriteString("\nstack:\n")
		b.WriteString(clip(fmt.Sprint(st), 900))
	}
	return b.String()
}

type forwardWriter struct {
	svc *Service
	min zerolog.Level
	lim *rate.Limiter
	// busy is set while the Forwarder runs.
	busy atomic.Bool
}

func newForwardWriter(s *Service, cfg ForwardConfig) *forwardWriter {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &forwardWriter{
		svc: s,
		min: parseLevel(cfg.MinLevel, zerolog.ErrorLevel),
		lim: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (w *forwardWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *forwardWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min || level == zerolog.NoLevel {
		return len(p), nil
	}
	fn := w.svc.fwd.Load()
	if fn == nil {
		return len(p), nil
	}
	if !w.busy.CompareAndSwap(false, true) {
		return len(p), nil
	}
	defer w.busy.Store(false)
	if !w.lim.Allow() {
		w.svc.fwdLimited.Add(1)
		return len(p), nil
	}
	e, ok := decodeEntry(level, p)
	if !ok {
		return len(p), nil
	}
	w.svc.fwdSent.Add(1)
	(*fn)(e)
	return len(p), nil
}

func decodeEntry(level zerolog.Level, p []byte) (Entry, bool) {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return Entry{}, false
	}
	e := Entry{Level: level, Fields: m}
	e.Message, _ = m[zerolog.MessageFieldName].(string)
	for _, k := range []string{zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName, zerolog.CallerFieldName} {
		delete(m, k)
	}
	return e, true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

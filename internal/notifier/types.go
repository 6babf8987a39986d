package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline. Zero values take defaults.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	DedupWindow   time.Duration
	DedupMax      int
}

// Target is a chat, optionally narrowed to a forum topic.
type Target struct {
	ChatID   int64
	ThreadID int
}

// Notification is one message for one or more targets.
type Notification struct {
	Targets []Target
	Text    string
	// Priority >= 7 marks an alert and prefixes the text.
	Priority int
}

// Sender delivers text to one target.
type Sender interface {
	Send(ctx context.Context, to Target, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to Target, text string) error

func (f SenderFunc) Send(ctx context.Context, to Target, text string) error { return f(ctx, to, text) }

// Stats counts pipeline outcomes per target delivery.
type Stats struct {
	Queued  uint64 `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Deduped uint64 `json:"deduped"`
	Dropped uint64 `json:"dropped"`
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"sked/pkg/sked"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines run log next to Path
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty, "none" or "off", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retention drops runs older than this on periodic pruning. 0 keeps all.
	Retention time.Duration
}

// RunRecord is one persisted task execution.
type RunRecord struct {
	ID         string    `json:"id"`
	TaskID     uint64    `json:"task_id"`
	Task       string    `json:"task"`
	Period     string    `json:"period"`
	Due        time.Time `json:"due"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
	Result     string    `json:"result"`
	Panic      string    `json:"panic,omitempty"`
}

// NewRunRecord converts an engine run notification, assigning a fresh ID.
func NewRunRecord(r sked.Run) RunRecord {
	return RunRecord{
		ID:         uuid.NewString(),
		TaskID:     uint64(r.TaskID),
		Task:       r.Name,
		Period:     r.Period.String(),
		Due:        r.Due,
		Started:    r.Started,
		DurationMS: r.Duration.Milliseconds(),
		Result:     r.Result.String(),
		Panic:      r.Panic,
	}
}

// pruneCutoff measures retention from r's start, so records stamped by a
// non-wall clock are pruned on that clock's timeline.
func pruneCutoff(r RunRecord, retention time.Duration) time.Time {
	base := r.Started
	if base.IsZero() {
		base = time.Now()
	}
	return base.Add(-retention)
}

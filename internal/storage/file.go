package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "sked/pkg/logx"
)

const (
	filePruneEvery = 1000
	// ringCap bounds the up-front allocation in RecentRuns; the ring grows
	// with append up to limit.
	ringCap = 64
)

// fileStore appends runs to <prefix>.runs.jsonl (JSON Lines). When a
// retention is set the file is periodically rewritten without expired runs.
type fileStore struct {
	log       logx.Logger
	path      string
	retention time.Duration

	mu     sync.Mutex
	f      *os.File
	closed bool
	writes int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	runsPath := filepath.Join(dir, base) + ".runs.jsonl"

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: runsPath, retention: cfg.Retention, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendRun(_ context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.f == nil {
		// A failed prune lost the append handle; try again before giving up.
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("reopen run log: %w", err)
		}
		s.f = f
		s.log.Info("run log reopened", logx.String("path", s.path))
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.retention > 0 && s.writes%filePruneEvery == 0 {
		if err := s.pruneLocked(pruneCutoff(r, s.retention)); err != nil {
			s.log.Warn("run log prune failed", logx.String("path", s.path), logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentRuns(ctx context.Context, task string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	// Keep the last limit matches in a ring, then emit newest first.
	ring := make([]RunRecord, 0, min(limit, ringCap))
	next := 0
	err := s.scanLocked(func(r RunRecord) bool {
		if task != "" && r.Task != task {
			return ctx.Err() == nil
		}
		if len(ring) < limit {
			ring = append(ring, r)
		} else {
			ring[next] = r
			next = (next + 1) % limit
		}
		return ctx.Err() == nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]RunRecord, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		out = append(out, ring[(next+i)%len(ring)])
	}
	return out, nil
}

// scanLocked calls fn for every decodable line until fn returns false.
func (s *fileStore) scanLocked(fn func(RunRecord) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if !fn(r) {
			break
		}
	}
	return sc.Err()
}

// pruneLocked rewrites the run log without runs started before cutoff.
func (s *fileStore) pruneLocked(cutoff time.Time) error {
	tmp := s.path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	var encErr error
	scanErr := s.scanLocked(func(r RunRecord) bool {
		if r.Started.Before(cutoff) {
			return true
		}
		encErr = enc.Encode(r)
		return encErr == nil
	})
	closeErr := out.Close()
	if err := errors.Join(scanErr, encErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// The append handle is reopened whether or not the swap succeeded.
	closeErr = s.f.Close()
	renameErr := os.Rename(tmp, s.path)
	f, openErr := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	s.f = f
	if openErr != nil {
		s.f = nil
	}
	return errors.Join(closeErr, renameErr, openErr)
}

package app

import (
	"context"
	"time"

	"sked/internal/notifier"
	"sked/internal/runtime/supervisor"
	"sked/internal/storage"
)

// Status is the /status document.
type Status struct {
	Running    bool               `json:"running"`
	Tasks      []TaskStatus       `json:"tasks"`
	Goroutines []supervisor.Stats `json:"goroutines"`
	History    *HistoryStatus     `json:"history,omitempty"`
	Notify     *notifier.Stats    `json:"notify,omitempty"`
}

type TaskStatus struct {
	ID     uint64     `json:"id"`
	Name   string     `json:"name"`
	Period string     `json:"period"`
	Next   *time.Time `json:"next,omitempty"`
	Runs   uint64     `json:"runs"`
}

type HistoryStatus struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

// Status reports the engine's tasks, supervised goroutines and pipeline
// counters.
func (a *App) Status() Status {
	a.mu.Lock()
	eng, sup := a.engine, a.sup
	a.mu.Unlock()

	var st Status
	if eng != nil {
		snap := eng.Snapshot()
		st.Running = snap.Running
		st.Tasks = make([]TaskStatus, 0, len(snap.Tasks))
		for _, ti := range snap.Tasks {
			ts := TaskStatus{
				ID:     uint64(ti.ID),
				Name:   ti.Name,
				Period: ti.Period.String(),
				Runs:   ti.Runs,
			}
			if !ti.Next.IsZero() {
				next := ti.Next
				ts.Next = &next
			}
			st.Tasks = append(st.Tasks, ts)
		}
	}
	if sup != nil {
		st.Goroutines = sup.Snapshot()
	}
	if a.rec != nil {
		st.History = &HistoryStatus{Written: a.rec.Written(), Dropped: a.rec.Dropped()}
	}
	if a.notifier != nil {
		ns := a.notifier.Stats()
		st.Notify = &ns
	}
	return st
}

func (a *App) recentRuns(ctx context.Context, task string, limit int) (any, error) {
	runs, err := a.store.RecentRuns(ctx, task, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	return runs, nil
}

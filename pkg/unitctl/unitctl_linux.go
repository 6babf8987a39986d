//go:build linux

package unitctl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

const jobMode = "replace"

// Manager talks to the system bus. The connection opens on first use so a
// daemon without systemd tasks never touches D-Bus.
type Manager struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	closed bool
}

func New() *Manager { return &Manager{} }

func (m *Manager) connect(ctx context.Context) (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	m.conn = conn
	return conn, nil
}

// Close drops the bus connection. Later calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	return nil
}

// Status reads the unit's core state. A missing unit is reported with
// LoadState "not-found" rather than an error.
func (m *Manager) Status(ctx context.Context, name string) (Status, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return Status{}, err
	}
	unit := UnitName(name)
	units, err := conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		if isNoSuchUnit(err) {
			return Status{Name: unit, LoadState: "not-found"}, nil
		}
		return Status{}, fmt.Errorf("status %s: %w", unit, err)
	}
	for _, u := range units {
		if u.Name == unit {
			return Status{Name: unit, Active: u.ActiveState, SubState: u.SubState, LoadState: u.LoadState}, nil
		}
	}
	return Status{Name: unit, LoadState: "not-found"}, nil
}

// Apply runs op on the unit and waits for systemd to finish the job or for
// ctx to end.
func (m *Manager) Apply(ctx context.Context, op Op, name string) (Outcome, error) {
	unit := UnitName(name)
	out := Outcome{Unit: unit, Op: op}

	if op == Recover {
		st, err := m.Status(ctx, unit)
		if err != nil {
			return out, err
		}
		out.Before = st
		if !st.Found() {
			return out, fmt.Errorf("recover %s: unit not found", unit)
		}
		if st.Healthy() {
			out.Skipped = true
			return out, nil
		}
	}

	conn, err := m.connect(ctx)
	if err != nil {
		return out, err
	}
	ch := make(chan string, 1)
	switch op {
	case Start:
		_, err = conn.StartUnitContext(ctx, unit, jobMode, ch)
	case Stop:
		_, err = conn.StopUnitContext(ctx, unit, jobMode, ch)
	case Restart, Recover:
		_, err = conn.RestartUnitContext(ctx, unit, jobMode, ch)
	case Reload:
		_, err = conn.ReloadUnitContext(ctx, unit, jobMode, ch)
	default:
		return out, fmt.Errorf("%w %q", ErrUnknownOp, op)
	}
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", op, unit, err)
	}

	select {
	case out.Result = <-ch:
	case <-ctx.Done():
		return out, fmt.Errorf("%s %s: %w", op, unit, ctx.Err())
	}
	if out.Result != "done" {
		return out, fmt.Errorf("%s %s: job %s", op, unit, out.Result)
	}
	return out, nil
}

func isNoSuchUnit(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NoSuchUnit")
}

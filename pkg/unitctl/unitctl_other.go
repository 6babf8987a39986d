//go:build !linux

package unitctl

import "context"

// Manager is a placeholder off Linux; every call fails with ErrUnsupported.
type Manager struct{}

func New() *Manager { return &Manager{} }

func (m *Manager) Close() error { return nil }

func (m *Manager) Status(context.Context, string) (Status, error) {
	return Status{}, ErrUnsupported
}

func (m *Manager) Apply(_ context.Context, op Op, name string) (Outcome, error) {
	return Outcome{Unit: UnitName(name), Op: op}, ErrUnsupported
}

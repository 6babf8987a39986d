package unitctl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Op{
		"start":   Start,
		" STOP ":  Stop,
		"Restart": Restart,
		"reload":  Reload,
		"recover": Recover,
	} {
		op, err := ParseOp(in)
		require.NoError(t, err, in)
		require.Equal(t, want, op)
	}
	_, err := ParseOp("kill")
	require.True(t, errors.Is(err, ErrUnknownOp))
}

func TestUnitName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"nginx", "nginx.service"},
		{" nginx.service ", "nginx.service"},
		{"backup.timer", "backup.timer"},
		{"docker.socket", "docker.socket"},
		{"app@1", "app@1.service"},
		{"node.js", "node.js.service"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, UnitName(tt.in), tt.in)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	require.False(t, Status{LoadState: "not-found"}.Found())
	require.False(t, Status{}.Found())
	require.True(t, Status{LoadState: "loaded"}.Found())

	require.True(t, Status{Active: "active"}.Healthy())
	require.True(t, Status{Active: "activating"}.Healthy())
	require.False(t, Status{Active: "failed"}.Healthy())
	require.False(t, Status{Active: "inactive"}.Healthy())
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "restart a.service: done", Outcome{Unit: "a.service", Op: Restart, Result: "done"}.String())
	require.Equal(t, "recover a.service: skipped (active)",
		Outcome{Unit: "a.service", Op: Recover, Skipped: true, Before: Status{Active: "active"}}.String())
}

func TestClosedManager(t *testing.T) {
	t.Parallel()
	m := New()
	require.NoError(t, m.Close())
	_, err := m.Apply(t.Context(), Start, "x")
	require.Error(t, err)
}

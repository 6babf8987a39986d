package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	require.True(t, l.IsZero())
	// must not panic
	l.Info("hello", String("k", "v"))
	require.False(t, Nop().IsZero())
}

func TestJSONLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewJSON(&buf, "debug").With(String("comp", "engine"))
	l.Warn("late dispatch", Uint64("task", 7), Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "late dispatch", m["message"])
	require.Equal(t, "engine", m["comp"])
	require.EqualValues(t, 7, m["task"])
	require.Equal(t, "warn", m["level"])
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewJSON(&buf, "warn")
	l.Debug("dropped")
	require.Zero(t, buf.Len())
	require.False(t, l.Enabled(LevelDebug))
	require.True(t, l.Enabled(LevelError))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{raw: "debug", want: zerolog.DebugLevel, ok: true},
		{raw: " WARNING ", want: zerolog.WarnLevel, ok: true},
		{raw: "error", want: zerolog.ErrorLevel, ok: true},
		{raw: "loud", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			require.Equal(t, tt.want, got, tt.raw)
		}
	}
}

func TestServiceApplySwapsLevel(t *testing.T) {
	svc, l := New(Config{Level: "error", Console: true})
	t.Cleanup(func() { _ = svc.Close() })
	require.False(t, l.Enabled(LevelInfo))

	svc.Apply(Config{Level: "debug", Console: true})
	require.True(t, l.Enabled(LevelDebug))
	require.Equal(t, "debug", svc.Config().Level)
}

func TestForwardSink(t *testing.T) {
	t.Parallel()
	svc, log := New(Config{
		Level:   "debug",
		File:    FileConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "out.log")},
		Forward: ForwardConfig{Enabled: true, MinLevel: "warn", RatePerSec: 2},
	})
	t.Cleanup(func() { _ = svc.Close() })

	var got []Entry
	svc.SetForwarder(func(e Entry) {
		got = append(got, e)
		// Logged from inside the forwarder: not forwarded again.
		log.Error("echo")
	})

	log.Info("quiet")
	log.Warn("unit failed", String("comp", "app"), Int("code", 3))
	log.Error("disk full", Stack("main.go:1"))
	log.Error("limited")

	require.Len(t, got, 2)
	require.Equal(t, LevelWarn, got[0].Level)
	require.Equal(t, "unit failed", got[0].Message)
	require.Equal(t, "[WARN] unit failed\ncode=3\ncomp=app", got[0].Text())
	require.NotContains(t, got[0].Fields, "time")
	require.Contains(t, got[1].Text(), "stack:\nmain.go:1")

	sent, limited := svc.Forwarded()
	require.Equal(t, uint64(2), sent)
	require.Equal(t, uint64(1), limited)

	svc.SetForwarder(nil)
	log.Error("detached")
	require.Len(t, got, 2)
}

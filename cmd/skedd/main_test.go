package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sked/internal/app"
)

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	// 08:00 on the 14th at UTC+9 is still the 13th in UTC; rules and the
	// listing both follow UTC.
	from := time.Date(2026, 10, 14, 8, 0, 0, 0, time.FixedZone("UTC+9", 9*3600))

	var buf bytes.Buffer
	require.NoError(t, app.CheckFile(&buf, "skedd.example.yaml", from, 2))
	out := buf.String()

	require.Contains(t, out, "nightly-backup: every day at 04:00:00, action=exec\n"+
		"  2026-10-14T04:00:00Z\n"+
		"  2026-10-15T04:00:00Z\n")
	require.Contains(t, out, "weekly-report: Wednesday at 13:45:35, action=exec\n"+
		"  2026-10-14T13:45:35Z\n"+
		"  2026-10-21T13:45:35Z\n")
	require.Contains(t, out, "nginx-recover:")
}

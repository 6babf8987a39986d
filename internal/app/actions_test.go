package app

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTrimOutput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short", in: "  ok\n", want: "ok"},
		{name: "exact", in: strings.Repeat("a", maxOutputLog), want: strings.Repeat("a", maxOutputLog)},
		{name: "ascii", in: strings.Repeat("a", maxOutputLog+5), want: strings.Repeat("a", maxOutputLog) + "..."},
		// 511 bytes of ASCII then a 3-byte rune straddling the limit.
		{name: "rune boundary", in: strings.Repeat("a", maxOutputLog-1) + "€€", want: strings.Repeat("a", maxOutputLog-1) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := trimOutput([]byte(tt.in))
			require.Equal(t, tt.want, got)
			require.True(t, utf8.ValidString(got))
		})
	}

	multi := trimOutput([]byte(strings.Repeat("é", maxOutputLog)))
	require.True(t, utf8.ValidString(multi))
	require.LessOrEqual(t, len(multi), maxOutputLog+3)
}

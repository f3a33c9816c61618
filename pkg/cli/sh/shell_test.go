package sh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/vterm.go/pkg/status"
)

func TestParseText(t *testing.T) {
	testCases := []struct {
		args     []string
		expected string
	}{
		{[]string{"hello", "world"}, "hello world"},
		{[]string{`ls\r`}, "ls\r"},
		{[]string{`\x1b[2J`}, "\x1b[2J"},
		{[]string{`say`, `"hi"`}, `say "hi"`},
	}
	for _, tc := range testCases {
		data, err := ParseText(tc.args)
		require.NoError(t, err)
		require.Equal(t, tc.expected, string(data))
	}
	_, err := ParseText([]string{`\q`})
	require.Error(t, err)
}

func TestParseOnOff(t *testing.T) {
	on, err := ParseOnOff("ON")
	require.NoError(t, err)
	require.True(t, on)
	on, err = ParseOnOff("0")
	require.NoError(t, err)
	require.False(t, on)
	_, err = ParseOnOff("maybe")
	require.Error(t, err)
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(&status.Report{DeviceID: "t1", Baud: 9600, BusOwned: true, KeysPressed: 5, UptimeMs: 1500})
	require.True(t, strings.Contains(out, "device    t1"))
	require.True(t, strings.Contains(out, "bus       owned"))
	require.True(t, strings.Contains(out, "pressed 0x5"))
	require.True(t, strings.Contains(out, "uptime    1.5s"))
	require.False(t, strings.Contains(out, "break"))

	out = FormatReport(&status.Report{Break: true})
	require.True(t, strings.Contains(out, "break     requested"))
}

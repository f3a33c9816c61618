//go:build linux

package joypad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	testCases := []struct {
		raw []byte
		ev  Event
		ok  bool
	}{
		{[]byte{1, 2, 3, 4, 1, 0, evBTN, 3}, Event{Button: 3, Pressed: true}, true},
		{[]byte{1, 2, 3, 4, 0, 0, evBTN | evINIT, 0}, Event{Button: 0, Init: true}, true},
		{[]byte{1, 2, 3, 4, 0xff, 0x7f, 0x02, 1}, Event{}, false},
	}
	for _, tc := range testCases {
		ev, ok := decodeEvent(tc.raw)
		require.Equal(t, tc.ok, ok)
		require.Equal(t, tc.ev, ev)
	}
}

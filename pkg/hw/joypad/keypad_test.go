package joypad

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/vterm.go/pkg/hw"
)

type fakeDevice struct {
	events []Event
	closed bool
}

func (d *fakeDevice) Close() error     { d.closed = true; return nil }
func (d *fakeDevice) Name() string     { return "fake pad" }
func (d *fakeDevice) ButtonCount() int { return 4 }

func (d *fakeDevice) ReadEvent() (Event, error) {
	if len(d.events) == 0 {
		return Event{}, io.EOF
	}
	ev := d.events[0]
	d.events = d.events[1:]
	return ev, nil
}

func TestKeypadLines(t *testing.T) {
	dev := &fakeDevice{events: []Event{
		{Button: 0, Pressed: false, Init: true},
		{Button: 1, Pressed: true},
		{Button: 7, Pressed: true},
		{Button: 2, Pressed: true},
		{Button: 2, Pressed: false},
	}}
	k := NewKeypad(dev, 3)
	pins := k.Pins()
	for _, p := range pins {
		require.NoError(t, p.Configure(hw.PinInputPullUp))
	}

	err := k.Run(context.Background())
	require.Equal(t, io.EOF, err)
	require.True(t, dev.closed)

	require.Equal(t, hw.High, pins[0].Get())
	require.Equal(t, hw.Low, pins[1].Get())
	require.Equal(t, hw.High, pins[2].Get())
}

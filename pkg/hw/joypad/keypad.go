package joypad

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
)

// Keypad drives one key line per button from a Device.
type Keypad struct {
	Device Device
	Lines  []*hw.VirtualPin
}

// NewKeypad creates a Keypad with n released key lines.
func NewKeypad(dev Device, n int) *Keypad {
	k := &Keypad{Device: dev}
	for i := 0; i < n; i++ {
		line := hw.NewVirtualPin(fmt.Sprintf("button%d", i), hw.High)
		line.Release()
		k.Lines = append(k.Lines, line)
	}
	return k
}

// Pins returns the key lines for the scanner.
func (k *Keypad) Pins() []hw.Pin {
	pins := make([]hw.Pin, len(k.Lines))
	for i, line := range k.Lines {
		pins[i] = line
	}
	return pins
}

// Name implements framework.Named.
func (k *Keypad) Name() string {
	return "joypad"
}

// Run implements framework.Runnable.
func (k *Keypad) Run(ctx context.Context) error {
	glog.Infof("joypad %q: %d buttons, %d keys", k.Device.Name(), k.Device.ButtonCount(), len(k.Lines))
	return fx.RunWithContextCloser(ctx, k.Device, k.readEvents)
}

func (k *Keypad) readEvents() error {
	for {
		ev, err := k.Device.ReadEvent()
		if err != nil {
			return err
		}
		k.apply(ev)
	}
}

func (k *Keypad) apply(ev Event) {
	if ev.Button < 0 || ev.Button >= len(k.Lines) {
		return
	}
	line := k.Lines[ev.Button]
	if ev.Pressed {
		line.Drive(hw.Low)
	} else {
		// an idle key line floats and reads HIGH through its pull-up.
		line.Release()
	}
	glog.V(3).Infof("joypad button %d pressed=%v init=%v", ev.Button, ev.Pressed, ev.Init)
}

// Package joypad turns the buttons of a joystick into key lines for
// the key scanner: a pressed button reads LOW.
package joypad

import (
	"errors"
	"io"
)

// ErrUnsupported is returned by Open where joysticks aren't supported.
var ErrUnsupported = errors.New("joystick not supported on this platform")

// Event is a button change.
type Event struct {
	Button  int
	Pressed bool
	// Init marks the synthetic events reporting the initial state.
	Init bool
}

// Device is an opened joystick.
type Device interface {
	io.Closer
	Name() string
	ButtonCount() int
	// ReadEvent blocks for the next button event. Axis events are
	// skipped.
	ReadEvent() (Event, error)
}

package serial

import (
	"fmt"
	"strings"
)

// Mode selects where received bytes go.
type Mode int

// Modes.
const (
	// ModeDisabled delivers to the terminal only, pass-through is off.
	ModeDisabled Mode = iota
	// ModeSerial delivers to the terminal only.
	ModeSerial
	// ModePassThrough delivers to the terminal and the pass-through sink.
	ModePassThrough
	// ModePassThroughOnly delivers to the pass-through sink only.
	ModePassThroughOnly
)

var modeNames = []string{"disabled", "serial", "passthrough", "passthrough-only"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a Mode from its name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for n, name := range modeNames {
		if s == name {
			return Mode(n), nil
		}
	}
	return ModeDisabled, fmt.Errorf("unknown pass-through mode %q", s)
}

// Settings is the read-only view of the configuration the transport
// consults. It is queried on every task invocation.
type Settings interface {
	SerialBaud() uint32
	SerialXonXoff() bool
	// SerialBlink is the activity blink duration in milliseconds,
	// 0 disables blinking.
	SerialBlink() uint16
	PassThroughMode() Mode
}

// StaticSettings is a fixed Settings.
type StaticSettings struct {
	Baud    uint32
	XonXoff bool
	BlinkMs uint16
	Mode    Mode
}

// SerialBaud implements Settings.
func (s *StaticSettings) SerialBaud() uint32 { return s.Baud }

// SerialXonXoff implements Settings.
func (s *StaticSettings) SerialXonXoff() bool { return s.XonXoff }

// SerialBlink implements Settings.
func (s *StaticSettings) SerialBlink() uint16 { return s.BlinkMs }

// PassThroughMode implements Settings.
func (s *StaticSettings) PassThroughMode() Mode { return s.Mode }

// Receiver consumes received bytes one at a time.
type Receiver interface {
	ReceiveChar(byte)
}

// ReceiveCharFunc is the func form of Receiver.
type ReceiveCharFunc func(byte)

// ReceiveChar implements Receiver.
func (f ReceiveCharFunc) ReceiveChar(b byte) {
	f(b)
}

// Receivers fans out to multiple receivers.
type Receivers []Receiver

// ReceiveChar implements Receiver.
func (r Receivers) ReceiveChar(b byte) {
	for _, recv := range r {
		recv.ReceiveChar(b)
	}
}

package config

import (
	"sync"

	"github.com/robotalks/vterm.go/pkg/serial"
)

// Store holds the live transport settings. It implements
// serial.Settings and may be changed from any goroutine; the transport
// picks changes up on its next task.
type Store struct {
	lock    sync.RWMutex
	baud    uint32
	xonxoff bool
	blinkMs uint16
	mode    serial.Mode
}

// NewStore creates a Store from a validated Config.
func (c *Config) NewStore() *Store {
	mode, _ := serial.ParseMode(c.Serial.Mode)
	return &Store{
		baud:    uint32(c.Serial.Baud),
		xonxoff: c.Serial.XonXoff,
		blinkMs: uint16(c.Serial.BlinkMs),
		mode:    mode,
	}
}

// SerialBaud implements serial.Settings.
func (s *Store) SerialBaud() uint32 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.baud
}

// SerialXonXoff implements serial.Settings.
func (s *Store) SerialXonXoff() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.xonxoff
}

// SerialBlink implements serial.Settings.
func (s *Store) SerialBlink() uint16 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.blinkMs
}

// PassThroughMode implements serial.Settings.
func (s *Store) PassThroughMode() serial.Mode {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.mode
}

// SetBaud stores the baud rate. The transport must be told to
// re-apply it.
func (s *Store) SetBaud(baud uint32) {
	s.lock.Lock()
	s.baud = baud
	s.lock.Unlock()
}

// SetXonXoff enables or disables flow control.
func (s *Store) SetXonXoff(on bool) {
	s.lock.Lock()
	s.xonxoff = on
	s.lock.Unlock()
}

// SetBlink sets the activity blink in ms.
func (s *Store) SetBlink(ms uint16) {
	s.lock.Lock()
	s.blinkMs = ms
	s.lock.Unlock()
}

// SetMode sets the pass-through mode.
func (s *Store) SetMode(mode serial.Mode) {
	s.lock.Lock()
	s.mode = mode
	s.lock.Unlock()
}

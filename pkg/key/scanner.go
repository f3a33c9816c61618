// Package key implements the debounced, auto-repeating button scanner.
//
// Scan is the producer of key events and Get/Ret/Flush are the
// consumer. With a periodic scan the two sides run on different
// goroutines; the event buffer is a lock-free SPSC ring, and the
// per-key pressed flags are atomic so the consumer can query them.
package key

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
	"github.com/robotalks/vterm.go/pkg/ringbuf"
)

// Code identifies a key: index + 1.
type Code byte

// NoKey is returned when no key event is pending.
const NoKey Code = 0

type keyState struct {
	pressed atomic.Bool
	// lastPress is the repeat reference in ms, lastRelease the last
	// time the key read LOW. Only Scan touches them.
	lastPress   uint16
	lastRelease uint16
}

// Scanner scans a set of active-LOW key inputs.
type Scanner struct {
	Config Config
	Pins   []hw.Pin
	Clock  hw.Clock

	boot     time.Time
	keys     []keyState
	events   *ringbuf.Ring
	pushback Code
}

// NewScanner creates a Scanner for pins, key i+1 being pins[i].
func NewScanner(config Config, pins ...hw.Pin) *Scanner {
	return &Scanner{
		Config: config,
		Pins:   pins,
		Clock:  hw.SystemClock{},
	}
}

// Init configures the pins as pulled-up inputs and resets all state.
func (s *Scanner) Init() error {
	for _, pin := range s.Pins {
		if err := pin.Configure(hw.PinInputPullUp); err != nil {
			return err
		}
	}
	size := s.Config.BufferSize
	if size < 2 {
		size = 2
	}
	s.boot = s.Clock.Now()
	s.keys = make([]keyState, len(s.Pins))
	s.events = ringbuf.New(size - 1)
	s.pushback = NoKey
	return nil
}

// Name implements framework.Named.
func (s *Scanner) Name() string {
	return "key-scanner"
}

// AddToLoop implements framework.LoopAdder. A periodic scanner runs in
// its own goroutine, otherwise it is scanned by the loop.
func (s *Scanner) AddToLoop(l *fx.Loop) {
	if s.Config.Periodic {
		l.AddRunnable(s)
	} else {
		l.AddPoller(fx.PollFunc(func(bool) { s.Scan() }))
	}
}

// Run implements framework.Runnable: scan every ScanInterval.
func (s *Scanner) Run(ctx context.Context) error {
	interval := s.Config.ScanInterval
	if interval <= 0 {
		interval = DefaultConfig().ScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Scan()
		}
	}
}

// now returns the wrapping millisecond clock.
func (s *Scanner) now() uint16 {
	return millis(s.Clock.Now().Sub(s.boot))
}

// Scan samples every key once and emits events.
func (s *Scanner) Scan() {
	t := s.now()
	delay := millis(s.Config.RepeatDelay)
	interval := millis(s.Config.RepeatInterval)
	release := millis(s.Config.ReleaseTime)
	for i, pin := range s.Pins {
		k := &s.keys[i]
		if pin.Get() == hw.Low {
			if !k.pressed.Load() {
				// the first repeat is due RepeatDelay after the press.
				k.lastPress = t + delay - interval
				k.pressed.Store(true)
				s.emit(Code(i + 1))
			} else if int16(t-k.lastPress) >= int16(interval) {
				k.lastPress = t
				s.emit(Code(i + 1))
			}
			k.lastRelease = t
		} else if k.pressed.Load() && int16(t-k.lastRelease) >= int16(release) {
			k.pressed.Store(false)
			glog.V(3).Infof("key %d released", i+1)
		}
	}
}

func (s *Scanner) emit(code Code) {
	if !s.events.Push(byte(code)) {
		glog.V(3).Infof("key %d dropped, buffer full", code)
		return
	}
	glog.V(3).Infof("key %d", code)
}

func (s *Scanner) lazyScan() {
	if !s.Config.Periodic {
		s.Scan()
	}
}

// Get returns the next key event, the returned key first, or NoKey.
func (s *Scanner) Get() Code {
	s.lazyScan()
	if code := s.pushback; code != NoKey {
		s.pushback = NoKey
		return code
	}
	if b, ok := s.events.Pop(); ok {
		return Code(b)
	}
	return NoKey
}

// Ret returns code so the next Get delivers it again. Only one key can
// be returned; a second Ret replaces the first.
func (s *Scanner) Ret(code Code) {
	s.pushback = code
}

// Flush discards all pending events including a returned key.
func (s *Scanner) Flush() {
	s.events.Flush()
	s.pushback = NoKey
}

// Pressed reports the debounced state of key code.
func (s *Scanner) Pressed(code Code) bool {
	s.lazyScan()
	if code < 1 || int(code) > len(s.keys) {
		return false
	}
	return s.keys[code-1].pressed.Load()
}

// NoPressed reports whether every key is released.
func (s *Scanner) NoPressed() bool {
	for i := range s.keys {
		if s.keys[i].pressed.Load() {
			return false
		}
	}
	return true
}

// WaitNoPressed spins until every key is released. It has no timeout.
func (s *Scanner) WaitNoPressed() {
	for {
		s.lazyScan()
		if s.NoPressed() {
			return
		}
		runtime.Gosched()
	}
}

// Pending returns the number of buffered events.
func (s *Scanner) Pending() int {
	n := s.events.Len()
	if s.pushback != NoKey {
		n++
	}
	return n
}

// Drops returns the number of events lost to a full buffer.
func (s *Scanner) Drops() uint64 {
	return s.events.Drops()
}

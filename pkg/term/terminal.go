// Package term assembles the terminal core: the transport, the key
// scanner and the emulated lines, all owned by one loop.
package term

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/vterm.go/pkg/config"
	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
	"github.com/robotalks/vterm.go/pkg/key"
	"github.com/robotalks/vterm.go/pkg/pio"
	"github.com/robotalks/vterm.go/pkg/serial"
	"github.com/robotalks/vterm.go/pkg/status"
)

// Pin names.
const (
	PinBusSelect = "lcd_cs"
	PinLED       = "led"
)

// KeyListener receives key events on the loop goroutine.
type KeyListener func(key.Code)

// Terminal is the device handle. Apart from AddPin and AddKeyListener
// during setup, its methods run on the loop goroutine.
type Terminal struct {
	ID        string
	Loop      *fx.Loop
	Settings  *config.Store
	Transport *serial.Transport
	Keys      *key.Scanner

	// Port carries the channels to the host when set; Start links it.
	Port   io.ReadWriteCloser
	Link   *pio.Link
	Clock  hw.Clock
	// Settle is how long Start keeps the loop running without input
	// once the host has been told the device is up.
	Settle time.Duration

	pins      map[string]*hw.VirtualPin
	listeners []KeyListener
	started   time.Time
}

// New creates a Terminal.
func New(id string, loop *fx.Loop, settings *config.Store, tr *serial.Transport, keys *key.Scanner) *Terminal {
	return &Terminal{
		ID:        id,
		Loop:      loop,
		Settings:  settings,
		Transport: tr,
		Keys:      keys,
		Clock:     hw.SystemClock{},
		pins:      make(map[string]*hw.VirtualPin),
	}
}

// AddPin exposes a line to SetPin.
func (t *Terminal) AddPin(name string, pin *hw.VirtualPin) *Terminal {
	t.pins[name] = pin
	return t
}

// PinNames returns the sorted names of the exposed lines.
func (t *Terminal) PinNames() []string {
	names := make([]string, 0, len(t.pins))
	for name := range t.pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddKeyListener registers a receiver of key events.
func (t *Terminal) AddKeyListener(l KeyListener) *Terminal {
	t.listeners = append(t.listeners, l)
	return t
}

// Start initializes the transport and the scanner, announces the
// device and lets it settle. It runs on the goroutine which will own
// the loop, before the loop is started. An error is fatal.
func (t *Terminal) Start() error {
	t.started = t.Clock.Now()
	if err := t.Transport.Init(); err != nil {
		return err
	}
	if err := t.Keys.Init(); err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	t.Loop.Add(t.Transport, t.Keys, t)
	if t.Port != nil {
		tx, rx := t.Transport.Channels()
		t.Link = pio.NewLink(t.Port, tx, rx)
		t.Loop.AddRunnable(t.Link)
	}
	t.Transport.Started()
	if t.Settle > 0 {
		t.Loop.Wait(t.Settle)
	}
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (t *Terminal) AddToLoop(l *fx.Loop) {
	l.AddPoller(t)
}

// Poll implements framework.Poller: it hands key events to listeners
// when input is processed.
func (t *Terminal) Poll(processInput bool) {
	if !processInput {
		return
	}
	for code := t.Keys.Get(); code != key.NoKey; code = t.Keys.Get() {
		for _, l := range t.listeners {
			l(code)
		}
	}
}

// Report implements status.Source.
func (t *Terminal) Report() *status.Report {
	r := &status.Report{
		DeviceID:    t.ID,
		KeysPending: uint64(t.Keys.Pending()),
		KeyDrops:    t.Keys.Drops(),
		UptimeMs:    uint64(t.Clock.Now().Sub(t.started) / time.Millisecond),
	}
	r.SetStats(t.Settings.PassThroughMode(), t.Transport.Stats())
	for i := range t.Keys.Pins {
		if t.Keys.Pressed(key.Code(i + 1)) {
			r.KeysPressed |= 1 << uint(i)
		}
	}
	if t.Link != nil {
		r.LinkOverruns = t.Link.Overruns()
	}
	return r
}

// Send implements status.Source.
func (t *Terminal) Send(p []byte) int {
	n := t.Transport.CanSend()
	if n > len(p) {
		n = len(p)
	}
	t.Transport.Write(p[:n])
	return n
}

// SetPin implements status.Source.
func (t *Terminal) SetPin(name string, level bool) error {
	pin, ok := t.pins[name]
	if !ok {
		return fmt.Errorf("%w: %s", status.ErrUnknownPin, name)
	}
	pin.Drive(level)
	glog.V(3).Infof("pin %s driven %v", name, level)
	return nil
}

// SetBaud stores and applies a new baud rate.
func (t *Terminal) SetBaud(baud uint32) {
	t.Settings.SetBaud(baud)
	t.Transport.SetBaudRate(baud)
	glog.Infof("baud %d, achieved %.1f", baud, t.Transport.BaudRate())
}

// WriterSink adapts an io.Writer into a serial.Receiver. Write errors
// are logged once.
type WriterSink struct {
	W      io.Writer
	failed bool
}

// ReceiveChar implements serial.Receiver.
func (s *WriterSink) ReceiveChar(b byte) {
	if _, err := s.W.Write([]byte{b}); err != nil && !s.failed {
		s.failed = true
		glog.Errorf("terminal output: %v", err)
	}
}

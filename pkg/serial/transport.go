// Package serial implements the byte transport to the host over a pair
// of software UART channels sharing their wires with a display.
//
// The display's chip-select line decides who owns the wires: while it
// is LOW the display is being addressed and the transport neither
// sends nor accepts data; anything shifted in meanwhile is noise.
//
// A Transport is owned by the polling loop and none of its methods may
// be called concurrently; other goroutines go through Loop.Post/Do.
package serial

import (
	"fmt"
	"runtime"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
	"github.com/robotalks/vterm.go/pkg/led"
	"github.com/robotalks/vterm.go/pkg/pio"
	"github.com/robotalks/vterm.go/pkg/ringbuf"
)

// Control bytes.
const (
	BEL  byte = 7
	XON  byte = 17
	XOFF byte = 19
)

// Queue sizes and flow-control watermarks.
const (
	TxQueueSize = 512
	RxQueueSize = 32

	rxHighWater = 20
	rxLowWater  = 12
)

// StartupBlink is the LED pulse signalling the transport is up.
const StartupBlink = 1000 * time.Millisecond

// Transport is the shared-bus software serial transport.
type Transport struct {
	Block *pio.Block
	// BusSelect senses the display chip-select, LOW while the display
	// owns the wires. It is never driven.
	BusSelect hw.Pin
	LED       led.Driver
	LEDIndex  int
	Settings  Settings
	Clock     hw.Clock

	Terminal    Receiver
	PassThrough Receiver

	tx, rx             *pio.StateMachine
	txOffset, rxOffset int

	txQueue *ringbuf.Ring
	rxQueue *ringbuf.Ring

	// offTime is when the activity LED goes off, zero when idle.
	offTime time.Time
	xon     bool
	brk     bool

	discarded uint64
	xoffSent  uint64
	xonSent   uint64
}

// New creates a Transport. Init must be called before use.
func New(block *pio.Block, busSelect hw.Pin, ledDriver led.Driver, settings Settings) *Transport {
	return &Transport{
		Block:     block,
		BusSelect: busSelect,
		LED:       ledDriver,
		LEDIndex:  led.LED1,
		Settings:  settings,
		Clock:     hw.SystemClock{},
	}
}

// Init resets the transport, loads the channel programs and starts the
// readiness blink. An error means no channel could be set up, which the
// caller should treat as fatal.
func (t *Transport) Init() error {
	t.offTime = time.Time{}
	t.xon = true
	t.txQueue = ringbuf.New(TxQueueSize)
	t.rxQueue = ringbuf.New(RxQueueSize)
	if err := t.BusSelect.Configure(hw.PinInput); err != nil {
		return fmt.Errorf("serial: bus select: %w", err)
	}
	if err := t.ApplySettings(); err != nil {
		return err
	}
	t.blinkFor(StartupBlink)
	return nil
}

// ApplySettings (re)allocates both channels and loads their programs
// at the configured baud rate.
func (t *Transport) ApplySettings() error {
	t.release()
	baud := t.Settings.SerialBaud()
	var err error
	if t.rx, t.rxOffset, err = t.load(pio.UARTRx, baud); err != nil {
		return fmt.Errorf("serial: RX channel: %w", err)
	}
	if t.tx, t.txOffset, err = t.load(pio.UARTTx, baud); err != nil {
		t.release()
		return fmt.Errorf("serial: TX channel: %w", err)
	}
	glog.V(1).Infof("serial: RX sm%d@%d, TX sm%d@%d, %.1f baud",
		t.rx.Index(), t.rxOffset, t.tx.Index(), t.txOffset, t.rx.Baud())
	return nil
}

// Channels returns the TX and RX state machines.
func (t *Transport) Channels() (tx, rx *pio.StateMachine) {
	return t.tx, t.rx
}

func (t *Transport) load(p *pio.Program, baud uint32) (*pio.StateMachine, int, error) {
	if !t.Block.CanAddProgram(p) {
		return nil, 0, pio.ErrNoProgramSpace
	}
	sm, err := t.Block.ClaimUnusedSM()
	if err != nil {
		return nil, 0, err
	}
	offset, err := t.Block.AddProgram(p)
	if err != nil {
		sm.Unclaim()
		return nil, 0, err
	}
	sm.Init(p, offset, baud)
	sm.SetGate(t.BusSelect)
	sm.ClearFIFOs()
	return sm, offset, nil
}

func (t *Transport) release() {
	if t.rx != nil {
		t.discarded += t.rx.Gated()
		t.Block.RemoveProgram(pio.UARTRx, t.rxOffset)
		t.rx.Unclaim()
		t.rx = nil
	}
	if t.tx != nil {
		t.Block.RemoveProgram(pio.UARTTx, t.txOffset)
		t.tx.Unclaim()
		t.tx = nil
	}
}

func (t *Transport) busOwned() bool {
	return t.BusSelect.Get() != hw.Low
}

// IsWritable reports whether a byte can be shifted out now.
func (t *Transport) IsWritable() bool {
	return t.tx != nil && !t.tx.TxFull() && t.busOwned()
}

// IsReadable reports whether a received byte is waiting. Bytes which
// arrived while the display owned the bus are discarded. The channels
// are gated by BusSelect as well, so noise never reaches the FIFO even
// when nothing polls during the display transfer.
func (t *Transport) IsReadable() bool {
	if t.rx == nil || t.rx.RxEmpty() {
		return false
	}
	if t.busOwned() {
		return true
	}
	for {
		if _, ok := t.rx.Get(); !ok {
			break
		}
		t.discarded++
	}
	return false
}

// Getc reads one byte from the channel and blinks the LED.
func (t *Transport) Getc() (byte, bool) {
	if !t.IsReadable() {
		return 0, false
	}
	b, ok := t.rx.Get()
	if ok {
		t.blink(t.Settings.SerialBlink())
	}
	return b, ok
}

// Putc shifts one byte out. It spins while the channel FIFO is full.
func (t *Transport) Putc(b byte) {
	t.tx.PutBlocking(b)
}

// WriteBlocking sends p bypassing the queue, spinning until the
// channel is writable for each byte.
func (t *Transport) WriteBlocking(p []byte) {
	for _, b := range p {
		for !t.IsWritable() {
			runtime.Gosched()
		}
		t.Putc(b)
	}
}

// SetBaudRate reprograms both channels.
func (t *Transport) SetBaudRate(baud uint32) {
	t.tx.SetBaud(baud)
	t.rx.SetBaud(baud)
}

// BaudRate returns the rate achieved by the programmed divider.
func (t *Transport) BaudRate() float64 {
	return t.rx.Baud()
}

// SetBreak records a break request. The channels cannot hold the line
// in break, so the data path is unaffected; the request shows up in
// Stats.
func (t *Transport) SetBreak(on bool) {
	if on != t.brk {
		glog.V(1).Infof("serial: break %v requested, not supported by the channels", on)
	}
	t.brk = on
}

// CanSend returns the free space in the transmit queue.
func (t *Transport) CanSend() int {
	return t.txQueue.Free()
}

// SendChar queues b for transmission. When nothing is queued and the
// channel is writable b goes out immediately. A full queue drops b.
func (t *Transport) SendChar(b byte) {
	if t.IsWritable() && t.txQueue.Empty() {
		t.blink(t.Settings.SerialBlink())
		t.Putc(b)
		return
	}
	if !t.txQueue.Push(b) {
		glog.V(3).Infof("serial: TX queue full, dropped %#02x", b)
	}
}

// SendString queues every byte of s.
func (t *Transport) SendString(s string) {
	for i := 0; i < len(s); i++ {
		t.SendChar(s[i])
	}
}

// Write implements io.Writer on top of SendChar. It never fails;
// bytes which don't fit are dropped.
func (t *Transport) Write(p []byte) (int, error) {
	for _, b := range p {
		t.SendChar(b)
	}
	return len(p), nil
}

// ReceiveChar returns the next received byte. With XON/XOFF enabled it
// comes from the receive queue filled by Task, otherwise straight from
// the channel.
func (t *Transport) ReceiveChar() (byte, bool) {
	if t.Settings.SerialXonXoff() {
		return t.rxQueue.Pop()
	}
	return t.Getc()
}

// Readable is the non-destructive counterpart of ReceiveChar.
func (t *Transport) Readable() bool {
	if t.Settings.SerialXonXoff() {
		return !t.rxQueue.Empty()
	}
	return t.IsReadable()
}

// Started announces the device to the host: XON then BEL.
func (t *Transport) Started() {
	if t.IsWritable() {
		t.Putc(XON)
		t.Putc(BEL)
	}
}

func (t *Transport) blink(ms uint16) {
	if ms > 0 {
		t.blinkFor(time.Duration(ms) * time.Millisecond)
	}
}

func (t *Transport) blinkFor(d time.Duration) {
	t.LED.On(t.LEDIndex)
	t.offTime = t.Clock.Now().Add(d)
}

// Blinking reports whether the activity LED is lit by a pending blink.
func (t *Transport) Blinking() bool {
	return !t.offTime.IsZero()
}

// AddToLoop implements framework.LoopAdder.
func (t *Transport) AddToLoop(l *fx.Loop) {
	l.AddPoller(t)
}

// Poll implements framework.Poller.
func (t *Transport) Poll(processInput bool) {
	t.Task(processInput)
}

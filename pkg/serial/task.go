package serial

import (
	"time"

	"github.com/golang/glog"
)

// Task runs one step of the transport: transmit one queued byte,
// handle flow control, expire the activity blink and, if processInput
// is set, deliver one received byte.
func (t *Transport) Task(processInput bool) {
	if !t.txQueue.Empty() && t.IsWritable() {
		if b, ok := t.txQueue.Pop(); ok {
			t.blink(t.Settings.SerialBlink())
			t.Putc(b)
		}
	}

	if t.Settings.SerialXonXoff() {
		t.flowControl()
	}

	if !t.offTime.IsZero() && !t.Clock.Now().Before(t.offTime) {
		t.offTime = time.Time{}
		t.LED.Off(t.LEDIndex)
	}

	if processInput {
		if b, ok := t.ReceiveChar(); ok {
			t.dispatch(b)
		}
	}
}

// flowControl moves one byte from the channel into the receive queue
// and tells the host to pause or resume on watermark crossings.
func (t *Transport) flowControl() {
	if t.IsReadable() {
		b, ok := t.Getc()
		if !ok || b == XON || b == XOFF {
			return
		}
		t.rxQueue.Push(b)
		if t.rxQueue.Len() > rxHighWater && t.xon {
			t.Putc(XOFF)
			t.xon = false
			t.xoffSent++
			glog.V(2).Infof("serial: XOFF at %d queued", t.rxQueue.Len())
		}
	} else if t.rxQueue.Len() < rxLowWater && !t.xon {
		t.Putc(XON)
		t.xon = true
		t.xonSent++
		glog.V(2).Infof("serial: XON at %d queued", t.rxQueue.Len())
	}
}

func (t *Transport) dispatch(b byte) {
	switch t.Settings.PassThroughMode() {
	case ModeDisabled, ModeSerial:
		deliver(t.Terminal, b)
	case ModePassThrough:
		deliver(t.Terminal, b)
		deliver(t.PassThrough, b)
	case ModePassThroughOnly:
		deliver(t.PassThrough, b)
	}
}

func deliver(r Receiver, b byte) {
	if r != nil {
		r.ReceiveChar(b)
	}
}

// Stats is a snapshot of the transport counters.
type Stats struct {
	Baud      float64
	TxQueued  int
	TxDropped uint64
	RxQueued  int
	RxDropped uint64
	// Discarded counts bytes received while the display owned the bus.
	Discarded uint64
	XOn       bool
	XOnSent   uint64
	XOffSent  uint64
	BusOwned  bool
	Break     bool
}

// Stats returns the counters. Call it from the loop goroutine.
func (t *Transport) Stats() Stats {
	s := Stats{
		TxQueued:  t.txQueue.Len(),
		TxDropped: t.txQueue.Drops(),
		RxQueued:  t.rxQueue.Len(),
		RxDropped: t.rxQueue.Drops(),
		Discarded: t.discarded,
		XOn:       t.xon,
		XOnSent:   t.xonSent,
		XOffSent:  t.xoffSent,
		BusOwned:  t.busOwned(),
		Break:     t.brk,
	}
	if t.rx != nil {
		s.Baud = t.rx.Baud()
		s.Discarded += t.rx.Gated()
	}
	return s
}

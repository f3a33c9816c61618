package pio

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	fx "github.com/robotalks/vterm.go/pkg/framework"
)

// Link moves bytes between a pair of UART state machines and a byte
// stream standing in for the pins.
type Link struct {
	Port     io.ReadWriteCloser
	TX       *StateMachine
	RX       *StateMachine
	Interval time.Duration

	overruns atomic.Uint64
}

// DefaultLinkInterval is how often the TX FIFO is drained.
const DefaultLinkInterval = time.Millisecond

// NewLink creates a Link.
func NewLink(port io.ReadWriteCloser, tx, rx *StateMachine) *Link {
	return &Link{Port: port, TX: tx, RX: rx, Interval: DefaultLinkInterval}
}

// OpenSerial opens a host serial port to back a Link.
func OpenSerial(device string, baud int) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
}

// Name implements framework.Named.
func (l *Link) Name() string {
	return "pio-link"
}

// Overruns returns the number of bytes lost because the RX FIFO was full.
func (l *Link) Overruns() uint64 {
	return l.overruns.Load()
}

// Run implements framework.Runnable.
func (l *Link) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.writeLoop(ctx)
	}()
	err := fx.RunWithContextCloser(ctx, l.Port, l.readLoop)
	cancel()
	if werr := <-errCh; err == nil {
		err = werr
	}
	return err
}

func (l *Link) readLoop() error {
	buf := make([]byte, 64)
	for {
		n, err := l.Port.Read(buf)
		for _, b := range buf[:n] {
			if !l.RX.Feed(b) {
				l.overruns.Add(1)
				glog.V(3).Infof("pio link: RX overrun, byte %#02x lost", b)
			}
		}
		if err == io.EOF && n == 0 {
			// read timeout on some platforms.
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) writeLoop(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultLinkInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	out := make([]byte, 0, FIFODepth)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		out = out[:0]
		for {
			b, ok := l.TX.Drain()
			if !ok {
				break
			}
			out = append(out, b)
		}
		if len(out) == 0 {
			continue
		}
		if _, err := l.Port.Write(out); err != nil {
			return err
		}
	}
}

package serial

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/vterm.go/pkg/hw"
	"github.com/robotalks/vterm.go/pkg/hw/sim"
	"github.com/robotalks/vterm.go/pkg/led"
	"github.com/robotalks/vterm.go/pkg/pio"
)

type recordingLED struct {
	on      bool
	changes int
}

func (l *recordingLED) On(int)  { l.on = true; l.changes++ }
func (l *recordingLED) Off(int) { l.on = false; l.changes++ }

type transportTestEnv struct {
	t        *testing.T
	clock    *sim.ManualClock
	bus      *hw.VirtualPin
	led      *recordingLED
	settings *StaticSettings
	tr       *Transport

	terminal    []byte
	passThrough []byte
	wire        []byte
}

func newTransportTestEnv(t *testing.T, xonxoff bool) *transportTestEnv {
	env := &transportTestEnv{
		t:        t,
		clock:    sim.NewManualClock(),
		bus:      hw.NewVirtualPin("lcd_cs", hw.High),
		led:      &recordingLED{},
		settings: &StaticSettings{Baud: 115200, XonXoff: xonxoff, BlinkMs: 20, Mode: ModeSerial},
	}
	env.tr = New(pio.NewBlock(0), env.bus, env.led, env.settings)
	env.tr.Clock = env.clock
	env.tr.Terminal = ReceiveCharFunc(func(b byte) { env.terminal = append(env.terminal, b) })
	env.tr.PassThrough = ReceiveCharFunc(func(b byte) { env.passThrough = append(env.passThrough, b) })
	require.NoError(t, env.tr.Init())
	return env
}

// shiftOut collects what the TX channel put on the wire.
func (e *transportTestEnv) shiftOut() []byte {
	tx, _ := e.tr.Channels()
	for {
		b, ok := tx.Drain()
		if !ok {
			break
		}
		e.wire = append(e.wire, b)
	}
	return e.wire
}

// shiftIn delivers bytes from the wire into the RX channel.
func (e *transportTestEnv) shiftIn(bs ...byte) {
	_, rx := e.tr.Channels()
	for _, b := range bs {
		require.True(e.t, rx.Feed(b), "RX FIFO overrun")
	}
}

func (e *transportTestEnv) task(processInput bool) {
	e.tr.Task(processInput)
	e.shiftOut()
}

func (e *transportTestEnv) takeWire() []byte {
	e.shiftOut()
	w := e.wire
	e.wire = nil
	return w
}

func TestInitBlink(t *testing.T) {
	env := newTransportTestEnv(t, false)
	require.True(t, env.led.on)
	env.clock.Advance(StartupBlink - time.Millisecond)
	env.task(true)
	require.True(t, env.led.on)
	env.clock.Advance(time.Millisecond)
	env.task(true)
	require.False(t, env.led.on)
	require.False(t, env.tr.Blinking())
}

func TestBlinkReplacesDeadline(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.clock.Advance(StartupBlink)
	env.task(true)
	require.False(t, env.led.on)

	env.tr.SendChar('a')
	require.True(t, env.led.on)
	env.clock.Advance(10 * time.Millisecond)
	env.tr.SendChar('b')
	env.clock.Advance(15 * time.Millisecond)
	env.task(true)
	require.True(t, env.led.on, "second blink must extend the first")
	env.clock.Advance(5 * time.Millisecond)
	env.task(true)
	require.False(t, env.led.on)
}

func TestBlinkDisabled(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.settings.BlinkMs = 0
	env.clock.Advance(StartupBlink)
	env.task(true)
	changes := env.led.changes
	env.tr.SendChar('a')
	env.shiftIn('b')
	env.task(true)
	require.False(t, env.led.on)
	require.Equal(t, changes, env.led.changes)
}

func TestSendFastPath(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.tr.SendChar('x')
	require.Equal(t, TxQueueSize, env.tr.CanSend())
	require.Equal(t, []byte("x"), env.takeWire())
}

func TestSendPreservesOrder(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.bus.Drive(hw.Low)
	env.tr.SendString("ab")
	require.Equal(t, TxQueueSize-2, env.tr.CanSend())
	env.task(true)
	require.Empty(t, env.takeWire())

	env.bus.Drive(hw.High)
	// queue not empty: must not overtake "ab".
	env.tr.SendChar('c')
	require.Equal(t, TxQueueSize-3, env.tr.CanSend())
	for i := 0; i < 3; i++ {
		env.task(true)
	}
	require.Equal(t, []byte("abc"), env.takeWire())
	require.Equal(t, TxQueueSize, env.tr.CanSend())
}

func TestSendQueueFull(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.bus.Drive(hw.Low)
	for i := 0; i < TxQueueSize+88; i++ {
		env.tr.SendChar(byte(i))
	}
	require.Zero(t, env.tr.CanSend())
	stats := env.tr.Stats()
	require.Equal(t, TxQueueSize, stats.TxQueued)
	require.Equal(t, uint64(88), stats.TxDropped)

	env.bus.Drive(hw.High)
	for i := 0; i < TxQueueSize; i++ {
		env.task(false)
	}
	wire := env.takeWire()
	require.Len(t, wire, TxQueueSize)
	for i, b := range wire {
		require.Equal(t, byte(i), b)
	}
}

func TestBusExclusion(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.bus.Drive(hw.Low)
	require.False(t, env.tr.IsWritable())
	env.shiftIn('n', 'o', '!')
	require.False(t, env.tr.IsReadable())
	require.False(t, env.tr.Readable())
	_, ok := env.tr.ReceiveChar()
	require.False(t, ok)
	require.Equal(t, uint64(3), env.tr.Stats().Discarded)
	require.False(t, env.tr.Stats().BusOwned)

	env.bus.Drive(hw.High)
	require.True(t, env.tr.IsWritable())
	require.False(t, env.tr.IsReadable(), "noise must not surface after the bus is released")
	env.task(true)
	require.Empty(t, env.terminal)
}

func TestBusExclusionWithFlowControl(t *testing.T) {
	env := newTransportTestEnv(t, true)
	env.bus.Drive(hw.Low)
	env.shiftIn('x', 'y')
	env.task(true)
	env.bus.Drive(hw.High)
	env.task(true)
	require.Zero(t, env.tr.Stats().RxQueued)
	require.Empty(t, env.terminal)
}

func TestFlowControlHysteresis(t *testing.T) {
	env := newTransportTestEnv(t, true)

	for i := 1; i <= rxHighWater; i++ {
		env.shiftIn(byte('A' + i%26))
		env.task(false)
	}
	require.Empty(t, env.takeWire())
	require.True(t, env.tr.Stats().XOn)

	env.shiftIn('!')
	env.task(false)
	require.Equal(t, []byte{XOFF}, env.takeWire())
	require.False(t, env.tr.Stats().XOn)

	// the host keeps sending: no repeated XOFF, overflow is dropped.
	for i := rxHighWater + 1; i < RxQueueSize+1; i++ {
		env.shiftIn('.')
		env.task(false)
	}
	require.Empty(t, env.takeWire())
	stats := env.tr.Stats()
	require.Equal(t, RxQueueSize, stats.RxQueued)
	require.Equal(t, uint64(1), stats.RxDropped)

	for env.tr.Stats().RxQueued > rxLowWater {
		_, ok := env.tr.ReceiveChar()
		require.True(t, ok)
		env.task(false)
	}
	require.Empty(t, env.takeWire())

	env.tr.ReceiveChar()
	env.task(false)
	require.Equal(t, []byte{XON}, env.takeWire())
	require.True(t, env.tr.Stats().XOn)

	env.task(false)
	env.tr.ReceiveChar()
	env.task(false)
	require.Empty(t, env.takeWire())
	stats = env.tr.Stats()
	require.Equal(t, uint64(1), stats.XOffSent)
	require.Equal(t, uint64(1), stats.XOnSent)
}

func TestFlowControlFiltersControlBytes(t *testing.T) {
	env := newTransportTestEnv(t, true)
	env.shiftIn(XOFF, 'a', XON, 'b')
	for i := 0; i < 4; i++ {
		env.task(false)
	}
	require.True(t, env.tr.Readable())
	for i := 0; i < 4; i++ {
		env.task(true)
	}
	require.Equal(t, []byte("ab"), env.terminal)
	require.False(t, env.tr.Readable())
}

func TestReceiveDirect(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.clock.Advance(StartupBlink)
	env.task(false)
	require.False(t, env.led.on)

	env.shiftIn('q')
	require.True(t, env.tr.Readable())
	b, ok := env.tr.ReceiveChar()
	require.True(t, ok)
	require.Equal(t, byte('q'), b)
	require.True(t, env.led.on)
	require.Zero(t, env.tr.Stats().RxQueued)
}

func TestDispatchModes(t *testing.T) {
	testCases := []struct {
		mode        Mode
		terminal    bool
		passThrough bool
	}{
		{ModeDisabled, true, false},
		{ModeSerial, true, false},
		{ModePassThrough, true, true},
		{ModePassThroughOnly, false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			env := newTransportTestEnv(t, false)
			env.settings.Mode = tc.mode
			env.shiftIn('z')
			env.task(false)
			require.Empty(t, env.terminal)
			require.Empty(t, env.passThrough)
			env.task(true)
			if tc.terminal {
				require.Equal(t, []byte("z"), env.terminal)
			} else {
				require.Empty(t, env.terminal)
			}
			if tc.passThrough {
				require.Equal(t, []byte("z"), env.passThrough)
			} else {
				require.Empty(t, env.passThrough)
			}
		})
	}
}

func TestBaudRoundTrip(t *testing.T) {
	env := newTransportTestEnv(t, false)
	for _, baud := range []uint32{1200, 9600, 38400, 115200, 250000, 1000000} {
		env.tr.SetBaudRate(baud)
		div := float64(pio.DefaultSysClockHz) / float64(pio.UARTCyclesPerBit*int(baud))
		require.InDeltaf(t, float64(baud), env.tr.BaudRate(), float64(baud)/(256*div-1)+1e-6, "baud %d", baud)
		tx, _ := env.tr.Channels()
		require.Equal(t, env.tr.BaudRate(), tx.Baud())
	}
}

func TestApplySettingsNoStateMachine(t *testing.T) {
	block := pio.NewBlock(0)
	for i := 0; i < pio.NumStateMachines-1; i++ {
		_, err := block.ClaimUnusedSM()
		require.NoError(t, err)
	}
	tr := New(block, hw.NewVirtualPin("lcd_cs", hw.High), &recordingLED{}, &StaticSettings{Baud: 9600})
	err := tr.Init()
	require.Error(t, err)
	require.True(t, errors.Is(err, pio.ErrNoStateMachine))
	// the RX channel claimed before the failure is given back.
	_, err = block.ClaimUnusedSM()
	require.NoError(t, err)
}

func TestApplySettingsNoProgramSpace(t *testing.T) {
	block := pio.NewBlock(0)
	_, err := block.AddProgram(&pio.Program{Name: "display", Instructions: make([]uint16, pio.InstructionSlots-4)})
	require.NoError(t, err)
	tr := New(block, hw.NewVirtualPin("lcd_cs", hw.High), &recordingLED{}, &StaticSettings{Baud: 9600})
	require.True(t, errors.Is(tr.Init(), pio.ErrNoProgramSpace))
}

func TestApplySettingsRepeatedly(t *testing.T) {
	env := newTransportTestEnv(t, false)
	for i := 0; i < 2*pio.NumStateMachines; i++ {
		env.settings.Baud = uint32(9600 * (i + 1))
		require.NoError(t, env.tr.ApplySettings())
	}
	require.InDelta(t, float64(env.settings.Baud), env.tr.BaudRate(), 1000)
	env.tr.SendChar('k')
	require.Equal(t, []byte("k"), env.takeWire())
}

func TestStartedAndWriteBlocking(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.tr.Started()
	require.Equal(t, []byte{XON, BEL}, env.takeWire())

	env.tr.WriteBlocking([]byte("ok"))
	require.Equal(t, []byte("ok"), env.takeWire())

	env.bus.Drive(hw.Low)
	env.tr.Started()
	require.Empty(t, env.takeWire())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeDisabled, ModeSerial, ModePassThrough, ModePassThroughOnly} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := ParseMode("usb")
	require.Error(t, err)
}

func TestControlCodesLED(t *testing.T) {
	clock := sim.NewManualClock()
	bus := hw.NewVirtualPin("lcd_cs", hw.High)
	tr := New(pio.NewBlock(0), bus, nil, &StaticSettings{Baud: 115200, BlinkMs: 20})
	tr.LED = &led.ControlCodes{Link: tr}
	tr.Clock = clock
	require.NoError(t, tr.Init())
	env := &transportTestEnv{t: t, tr: tr}
	require.Equal(t, []byte{led.DC2}, env.takeWire())

	clock.Advance(StartupBlink)
	env.task(true)
	require.Equal(t, []byte{led.DC4}, env.takeWire())

	tr.SendChar('a')
	require.Equal(t, []byte{led.DC2, 'a'}, env.takeWire())

	// the display owns the bus: the LED state change is not sent.
	bus.Drive(hw.Low)
	clock.Advance(time.Second)
	env.task(true)
	require.False(t, tr.Blinking())
	bus.Drive(hw.High)
	require.Empty(t, env.takeWire())
}

func TestSetBreak(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.tr.SetBreak(true)
	require.True(t, env.tr.Stats().Break)
	env.tr.SendChar('a')
	require.Equal(t, []byte("a"), env.takeWire(), "data path unaffected")
	env.tr.SetBreak(false)
	require.False(t, env.tr.Stats().Break)
}

func TestBusNoiseWithoutPolling(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.bus.Drive(hw.Low)
	env.shiftIn('n')
	env.task(false)
	env.bus.Drive(hw.High)
	env.task(true)
	require.Empty(t, env.terminal)
	require.Equal(t, uint64(1), env.tr.Stats().Discarded)

	env.shiftIn('y')
	env.task(true)
	require.Equal(t, []byte("y"), env.terminal)
}

func TestBusHoldsTransmitFIFO(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.tr.Putc('a')
	env.bus.Drive(hw.Low)
	require.Empty(t, env.takeWire())
	env.bus.Drive(hw.High)
	require.Equal(t, []byte("a"), env.takeWire())
}

func TestDiscardedSurvivesReapply(t *testing.T) {
	env := newTransportTestEnv(t, false)
	env.bus.Drive(hw.Low)
	env.shiftIn('n', 'o')
	env.bus.Drive(hw.High)
	require.NoError(t, env.tr.ApplySettings())
	require.Equal(t, uint64(2), env.tr.Stats().Discarded)
}

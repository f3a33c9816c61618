package pio

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/robotalks/vterm.go/pkg/hw"
)

// Clock divider limits, 16.8 fixed point.
const (
	MinClkDiv = 1.0
	MaxClkDiv = 65535 + 255.0/256
)

// StateMachine is one state machine of a Block.
//
// The CPU side (Put, Get, TxFull, RxEmpty) is used by the transport;
// the wire side (Drain, Feed) by whatever moves bits on the pins.
// The two sides may run on different goroutines.
type StateMachine struct {
	block   *Block
	index   int
	claimed bool

	// clkdiv holds the divider register: integer part in bits 31:16,
	// fraction in bits 15:8.
	clkdiv atomic.Uint32
	gated  atomic.Uint64

	lock    sync.Mutex
	program *Program
	offset  int
	enabled bool
	gate    hw.Pin
	tx      fifo
	rx      fifo
}

// Index returns the state machine number within its block.
func (sm *StateMachine) Index() int {
	return sm.index
}

// Unclaim returns the state machine to the block.
func (sm *StateMachine) Unclaim() {
	sm.lock.Lock()
	sm.enabled, sm.program, sm.gate = false, nil, nil
	sm.tx.clear()
	sm.rx.clear()
	sm.lock.Unlock()
	sm.block.unclaim(sm)
}

// Init starts program p at offset, clocked for baud, with empty FIFOs.
func (sm *StateMachine) Init(p *Program, offset int, baud uint32) {
	sm.lock.Lock()
	sm.program, sm.offset = p, offset
	sm.tx.clear()
	sm.rx.clear()
	sm.enabled = true
	sm.lock.Unlock()
	sm.gated.Store(0)
	sm.SetBaud(baud)
}

// SetGate hands the state machine a line which must read HIGH for the
// pins to be driven or sampled. While it reads LOW nothing is shifted
// out and bytes shifted in are dropped. gate is sampled from the wire
// side and must be safe for concurrent use. nil removes the gate.
func (sm *StateMachine) SetGate(gate hw.Pin) {
	sm.lock.Lock()
	sm.gate = gate
	sm.lock.Unlock()
}

// Gated returns the number of bytes dropped by Feed since Init because
// the gate was LOW.
func (sm *StateMachine) Gated() uint64 {
	return sm.gated.Load()
}

func (sm *StateMachine) gateClosed() bool {
	return sm.gate != nil && sm.gate.Get() == hw.Low
}

// Enabled reports whether a program is running.
func (sm *StateMachine) Enabled() bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.enabled
}

// SetClkDiv programs the clock divider, quantized to 1/256.
func (sm *StateMachine) SetClkDiv(div float64) {
	if div < MinClkDiv {
		div = MinClkDiv
	} else if div > MaxClkDiv {
		div = MaxClkDiv
	}
	whole := uint32(div)
	frac := uint32((div - float64(whole)) * 256)
	sm.clkdiv.Store(whole<<16 | frac<<8)
}

// ClkDivRaw returns the divider register.
func (sm *StateMachine) ClkDivRaw() uint32 {
	return sm.clkdiv.Load()
}

// ClkDiv returns the programmed divider.
func (sm *StateMachine) ClkDiv() float64 {
	return float64(sm.clkdiv.Load()) / (1 << 16)
}

// SetBaud programs the divider so one bit lasts CyclesPerBit cycles.
func (sm *StateMachine) SetBaud(baud uint32) {
	if baud == 0 {
		return
	}
	sm.SetClkDiv(float64(sm.block.SysClockHz) / (float64(sm.cyclesPerBit()) * float64(baud)))
}

// Baud computes the bit rate achieved by the programmed divider.
func (sm *StateMachine) Baud() float64 {
	div := sm.ClkDiv()
	if div == 0 {
		return math.Inf(1)
	}
	return float64(sm.block.SysClockHz) / (div * float64(sm.cyclesPerBit()))
}

func (sm *StateMachine) cyclesPerBit() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if sm.program != nil && sm.program.CyclesPerBit > 0 {
		return sm.program.CyclesPerBit
	}
	return UARTCyclesPerBit
}

// TxFull reports whether the TX FIFO is full.
func (sm *StateMachine) TxFull() bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.tx.n == FIFODepth
}

// TxLevel returns the number of bytes in the TX FIFO.
func (sm *StateMachine) TxLevel() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.tx.n
}

// RxEmpty reports whether the RX FIFO is empty.
func (sm *StateMachine) RxEmpty() bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.rx.n == 0
}

// RxLevel returns the number of bytes in the RX FIFO.
func (sm *StateMachine) RxLevel() int {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.rx.n
}

// Put writes b into the TX FIFO, returns false if it is full.
func (sm *StateMachine) Put(b byte) bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.tx.push(b)
}

// PutBlocking spins until b fits into the TX FIFO.
func (sm *StateMachine) PutBlocking(b byte) {
	for !sm.Put(b) {
		runtime.Gosched()
	}
}

// Get reads from the RX FIFO.
func (sm *StateMachine) Get() (byte, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	return sm.rx.pop()
}

// ClearFIFOs discards the content of both FIFOs.
func (sm *StateMachine) ClearFIFOs() {
	sm.lock.Lock()
	sm.tx.clear()
	sm.rx.clear()
	sm.lock.Unlock()
}

// Drain takes the next byte to shift out on the pins. Nothing comes
// out while the gate is LOW.
func (sm *StateMachine) Drain() (byte, bool) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if !sm.enabled || sm.gateClosed() {
		return 0, false
	}
	return sm.tx.pop()
}

// Feed delivers a byte shifted in from the pins. It returns false when
// the RX FIFO overflows and the byte is lost. A byte arriving while
// the gate is LOW is counted in Gated and dropped, which is not an
// overrun.
func (sm *StateMachine) Feed(b byte) bool {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	if !sm.enabled {
		return false
	}
	if sm.gateClosed() {
		sm.gated.Add(1)
		return true
	}
	return sm.rx.push(b)
}

type fifo struct {
	data [FIFODepth]byte
	head int
	n    int
}

func (f *fifo) push(b byte) bool {
	if f.n == FIFODepth {
		return false
	}
	f.data[(f.head+f.n)%FIFODepth] = b
	f.n++
	return true
}

func (f *fifo) pop() (byte, bool) {
	if f.n == 0 {
		return 0, false
	}
	b := f.data[f.head]
	f.head = (f.head + 1) % FIFODepth
	f.n--
	return b, true
}

func (f *fifo) clear() {
	f.head, f.n = 0, 0
}

package pio

import (
	"errors"
	"sync"
)

// Block geometry.
const (
	NumStateMachines = 4
	InstructionSlots = 32
	FIFODepth        = 4
)

var (
	// ErrNoStateMachine indicates all state machines are claimed.
	ErrNoStateMachine = errors.New("no unused state machine")
	// ErrNoProgramSpace indicates the instruction memory is full.
	ErrNoProgramSpace = errors.New("not enough instruction memory")
	// ErrEmptyProgram indicates a program without instructions.
	ErrEmptyProgram = errors.New("empty program")
)

// Block is one PIO block.
type Block struct {
	SysClockHz uint32

	lock  sync.Mutex
	used  uint32
	progs [InstructionSlots]*Program
	sms   [NumStateMachines]StateMachine
}

// DefaultSysClockHz is the system clock of the target.
const DefaultSysClockHz = 125000000

// NewBlock creates a Block clocked at sysClockHz.
func NewBlock(sysClockHz uint32) *Block {
	if sysClockHz == 0 {
		sysClockHz = DefaultSysClockHz
	}
	b := &Block{SysClockHz: sysClockHz}
	for n := range b.sms {
		sm := &b.sms[n]
		sm.block, sm.index = b, n
		sm.clkdiv.Store(1 << 16)
	}
	return b
}

// CanAddProgram checks whether p fits in the free instruction memory.
func (b *Block) CanAddProgram(p *Program) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.findOffset(len(p.Instructions)) >= 0
}

// AddProgram loads p and returns its offset.
func (b *Block) AddProgram(p *Program) (int, error) {
	if len(p.Instructions) == 0 {
		return 0, ErrEmptyProgram
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	offset := b.findOffset(len(p.Instructions))
	if offset < 0 {
		return 0, ErrNoProgramSpace
	}
	b.used |= slotMask(offset, len(p.Instructions))
	b.progs[offset] = p
	return offset, nil
}

// RemoveProgram frees the instruction memory used by p at offset.
func (b *Block) RemoveProgram(p *Program, offset int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if offset < 0 || offset >= InstructionSlots || b.progs[offset] != p {
		return
	}
	b.used &^= slotMask(offset, len(p.Instructions))
	b.progs[offset] = nil
}

// FreeSlots returns the number of unused instruction slots.
func (b *Block) FreeSlots() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	n := 0
	for i := 0; i < InstructionSlots; i++ {
		if b.used&(1<<uint(i)) == 0 {
			n++
		}
	}
	return n
}

// ClaimUnusedSM claims a free state machine.
func (b *Block) ClaimUnusedSM() (*StateMachine, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for n := range b.sms {
		if sm := &b.sms[n]; !sm.claimed {
			sm.claimed = true
			return sm, nil
		}
	}
	return nil, ErrNoStateMachine
}

// StateMachine returns the state machine at index.
func (b *Block) StateMachine(index int) *StateMachine {
	return &b.sms[index]
}

func (b *Block) unclaim(sm *StateMachine) {
	b.lock.Lock()
	sm.claimed = false
	b.lock.Unlock()
}

// findOffset returns the highest offset where n slots are free, the
// same placement order as the SDK allocator.
func (b *Block) findOffset(n int) int {
	if n <= 0 || n > InstructionSlots {
		return -1
	}
	for offset := InstructionSlots - n; offset >= 0; offset-- {
		if b.used&slotMask(offset, n) == 0 {
			return offset
		}
	}
	return -1
}

func slotMask(offset, n int) uint32 {
	return uint32((uint64(1)<<uint(n))-1) << uint(offset)
}

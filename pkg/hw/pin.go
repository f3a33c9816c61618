// Package hw defines the minimal hardware surface the terminal core
// touches: digital lines and a monotonic clock.
package hw

import (
	"sync/atomic"
	"time"
)

// Logic levels as returned by Pin.Get.
const (
	Low  = false
	High = true
)

// PinMode is the electrical configuration of a line.
type PinMode int

// Pin modes.
const (
	// PinDefault is the undriven reset state: input, no pulls.
	PinDefault PinMode = iota
	PinInput
	PinInputPullUp
	PinOutput
)

var pinModeNames = map[PinMode]string{
	PinDefault:     "default",
	PinInput:       "input",
	PinInputPullUp: "input-pullup",
	PinOutput:      "output",
}

func (m PinMode) String() string {
	if name, ok := pinModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Pin is a digital line which can be sampled.
type Pin interface {
	// Configure sets the electrical mode of the line.
	Configure(PinMode) error
	// Get samples the line, true is HIGH.
	Get() bool
}

// OutputPin is a Pin which can also be driven.
type OutputPin interface {
	Pin
	Set(level bool)
	Toggle()
}

// Clock provides monotonic time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// VirtualPin is a line whose level is set by software, used where the
// host has no real GPIO (emulated straps, shared select lines, LEDs).
// A VirtualPin reads HIGH while configured with a pull-up and nothing
// drives it LOW, matching an idle open line.
type VirtualPin struct {
	Name string

	level  atomic.Bool
	driven atomic.Bool
	mode   atomic.Int32
}

// NewVirtualPin creates a VirtualPin driven to the given level.
func NewVirtualPin(name string, level bool) *VirtualPin {
	p := &VirtualPin{Name: name}
	p.Drive(level)
	return p
}

// Configure implements Pin.
func (p *VirtualPin) Configure(mode PinMode) error {
	p.mode.Store(int32(mode))
	return nil
}

// Mode returns the last configured mode.
func (p *VirtualPin) Mode() PinMode {
	return PinMode(p.mode.Load())
}

// Get implements Pin.
func (p *VirtualPin) Get() bool {
	if !p.driven.Load() {
		return p.Mode() == PinInputPullUp
	}
	return p.level.Load()
}

// Set implements OutputPin.
func (p *VirtualPin) Set(level bool) {
	p.Drive(level)
}

// Toggle implements OutputPin.
func (p *VirtualPin) Toggle() {
	p.Drive(!p.Get())
}

// Drive forces the line to a level from the outside.
func (p *VirtualPin) Drive(level bool) {
	p.level.Store(level)
	p.driven.Store(true)
}

// Release stops driving the line, leaving it floating.
func (p *VirtualPin) Release() {
	p.driven.Store(false)
}

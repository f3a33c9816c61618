// Package sim provides deterministic clocks and scripted pins for tests.
package sim

import (
	"sync"
	"time"

	"github.com/robotalks/vterm.go/pkg/hw"
)

// Epoch is the start time of simulated clocks.
var Epoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualClock only moves when told to.
type ManualClock struct {
	now  time.Time
	lock sync.Mutex
}

// NewManualClock creates a ManualClock at Epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: Epoch}
}

// Now implements hw.Clock.
func (c *ManualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

// Set moves the clock to Epoch+offset.
func (c *ManualClock) Set(offset time.Duration) {
	c.lock.Lock()
	c.now = Epoch.Add(offset)
	c.lock.Unlock()
}

// Elapsed returns the time since Epoch.
func (c *ManualClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// StepClock advances by Step before every Now, modelling a busy loop
// which samples once per tick. Elapsed does not advance it.
type StepClock struct {
	ManualClock
	Step time.Duration
}

// NewStepClock creates a StepClock at Epoch.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{ManualClock: ManualClock{now: Epoch}, Step: step}
}

// Now implements hw.Clock.
func (c *StepClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}

// Span is a half-open interval [From, To) relative to Epoch.
type Span struct {
	From, To time.Duration
}

// ScriptPin reads LOW while the clock is inside one of Low spans.
type ScriptPin struct {
	Clock interface{ Elapsed() time.Duration }
	Low   []Span

	Modes []hw.PinMode
	// Err is returned by Configure, which still records the mode.
	Err error
}

// Configure implements hw.Pin.
func (p *ScriptPin) Configure(mode hw.PinMode) error {
	p.Modes = append(p.Modes, mode)
	return p.Err
}

// Get implements hw.Pin.
func (p *ScriptPin) Get() bool {
	t := p.Clock.Elapsed()
	for _, s := range p.Low {
		if t >= s.From && t < s.To {
			return hw.Low
		}
	}
	return hw.High
}

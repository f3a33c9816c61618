// Package led drives the activity indicators.
package led

import (
	"github.com/golang/glog"

	"github.com/robotalks/vterm.go/pkg/hw"
)

// LED1 is the index of the primary indicator.
const LED1 = 0

// Driver switches indicators by index.
type Driver interface {
	On(index int)
	Off(index int)
}

// Config describes one GPIO driven LED.
type Config struct {
	Pin      hw.OutputPin
	Inverted bool
}

// GPIO drives LEDs connected to output pins.
type GPIO struct {
	LEDs []Config
}

// NewGPIO creates a GPIO driver, configures the pins and turns all LEDs off.
func NewGPIO(leds ...Config) (*GPIO, error) {
	d := &GPIO{LEDs: leds}
	for n, l := range leds {
		if err := l.Pin.Configure(hw.PinOutput); err != nil {
			return nil, err
		}
		d.Off(n)
	}
	return d, nil
}

// On implements Driver.
func (d *GPIO) On(index int) {
	d.Set(index, true)
}

// Off implements Driver.
func (d *GPIO) Off(index int) {
	d.Set(index, false)
}

// Set switches the LED on or off.
func (d *GPIO) Set(index int, on bool) {
	if index < 0 || index >= len(d.LEDs) {
		return
	}
	l := d.LEDs[index]
	l.Pin.Set(on != l.Inverted)
	glog.V(3).Infof("LED%d %v", index+1, on)
}

// Flip toggles the LED.
func (d *GPIO) Flip(index int) {
	if index < 0 || index >= len(d.LEDs) {
		return
	}
	d.LEDs[index].Pin.Toggle()
}

// IsOn reports the current LED state.
func (d *GPIO) IsOn(index int) bool {
	if index < 0 || index >= len(d.LEDs) {
		return false
	}
	l := d.LEDs[index]
	return l.Pin.Get() != l.Inverted
}

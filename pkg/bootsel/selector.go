// Package bootsel decides at power-up whether the resident terminal
// firmware keeps running or an alternate image takes over.
//
// The decision is made from a single shared line: holding it LOW for
// LowTime within MaxWait of power-up selects the alternate image.
package bootsel

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/vterm.go/pkg/hw"
)

// Default timings.
const (
	DefaultMaxWait = 200 * time.Millisecond
	DefaultLowTime = 50 * time.Millisecond
)

// Config holds the sampling window.
type Config struct {
	// MaxWait bounds the whole observation.
	MaxWait time.Duration
	// LowTime is how long the line must stay LOW without interruption.
	LowTime time.Duration
}

// DefaultConfig returns the default sampling window.
func DefaultConfig() Config {
	return Config{MaxWait: DefaultMaxWait, LowTime: DefaultLowTime}
}

// Selector runs once at start-up before any peripheral is configured.
type Selector struct {
	Config

	// Signal is the sampled line.
	Signal hw.Pin
	// Release lists lines returned to their reset state together with
	// Signal, whatever the decision.
	Release []hw.Pin
	Clock   hw.Clock

	Image  *Image
	Loader ChainLoader
}

// Sample observes Signal and reports whether it stayed LOW for LowTime
// before MaxWait elapsed. It returns as soon as the condition is met.
func (s *Selector) Sample() (bool, error) {
	if err := s.Signal.Configure(hw.PinInputPullUp); err != nil {
		return false, fmt.Errorf("bootsel: signal: %w", err)
	}

	start := s.Clock.Now()
	var lowSince time.Time
	lowRun := false
	for {
		now := s.Clock.Now()
		if now.Sub(start) >= s.MaxWait {
			return false, nil
		}
		if s.Signal.Get() != hw.Low {
			lowRun = false
			continue
		}
		if !lowRun {
			lowSince, lowRun = now, true
		}
		if now.Sub(lowSince) >= s.LowTime {
			return true, nil
		}
	}
}

// Select samples the line and acts on it. When the alternate image is
// not selected all lines are released and Select returns nil. Otherwise
// the image is chain-loaded and Select only returns if the transfer
// could not be initiated. If the loader comes back after a transfer,
// Select panics with ErrReturned. Lines are released in every case.
func (s *Selector) Select() error {
	selected, err := s.Sample()
	if rerr := s.releasePins(); err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}
	if !selected {
		glog.V(1).Info("bootsel: resident firmware")
		return nil
	}
	if s.Image == nil || s.Loader == nil {
		return ErrNoImage
	}
	glog.Infof("bootsel: signal held low, chain-loading %q", s.Image.Name)
	if err := s.Loader.ChainLoad(s.Image); err != nil {
		return err
	}
	panic(ErrReturned)
}

func (s *Selector) releasePins() error {
	var errs []error
	for _, pin := range append([]hw.Pin{s.Signal}, s.Release...) {
		if err := pin.Configure(hw.PinDefault); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("bootsel: release: %w", errors.Join(errs...))
	}
	return nil
}

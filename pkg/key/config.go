package key

import "time"

// Config defines the scanner timing.
type Config struct {
	// RepeatDelay is the time from the first press to the first repeat.
	RepeatDelay time.Duration
	// RepeatInterval is the time between subsequent repeats.
	RepeatInterval time.Duration
	// ReleaseTime is how long a key must read HIGH to count as released.
	ReleaseTime time.Duration
	// BufferSize is the number of slots of the event buffer. One slot
	// always stays empty, so BufferSize-1 events can be pending.
	BufferSize int
	// ScanInterval is the period of the background scan.
	ScanInterval time.Duration
	// Periodic enables the background scan. Without it the keys are
	// scanned lazily whenever they are queried.
	Periodic bool
}

// DefaultConfig returns the timing of the device.
func DefaultConfig() Config {
	return Config{
		RepeatDelay:    400 * time.Millisecond,
		RepeatInterval: 200 * time.Millisecond,
		ReleaseTime:    50 * time.Millisecond,
		BufferSize:     10,
		ScanInterval:   50 * time.Millisecond,
		Periodic:       true,
	}
}

func millis(d time.Duration) uint16 {
	return uint16(d / time.Millisecond)
}

package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Poller is a cooperative task driven by the Loop.
// Poll must not block: it does a bounded amount of work and returns.
type Poller interface {
	// Poll runs one step. processInput is false when the loop is
	// only keeping the device alive (see Loop.Wait) and input must
	// stay buffered.
	Poll(processInput bool)
}

// PollFunc is the func form of Poller.
type PollFunc func(processInput bool)

// Poll implements Poller.
func (f PollFunc) Poll(processInput bool) {
	f(processInput)
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the polling interval when Loop.Interval is not set.
const DefaultInterval = time.Millisecond

// Loop is the cooperative polling loop of the device.
// It owns the single thread of control: pollers and posted functions
// always run on the goroutine executing Run, so the state they touch
// needs no locking. Other goroutines reach that state through Post/Do.
type Loop struct {
	Interval time.Duration
	// Clock and Sleep pace Wait.
	Clock    TimeSource
	Sleep    func(time.Duration)

	pollers []Poller
	runners []Runnable

	posted postList
	lock   sync.Mutex

	wakeUpCh chan struct{}
}

type postList struct {
	head *postItem
	tail *postItem
}

type postItem struct {
	fn   func()
	next *postItem
}

func (l *postList) append(item *postItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

func (l *postList) splice(src *postList) {
	l.head, l.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		Clock:    wallClock{},
		Sleep:    time.Sleep,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddPoller registers pollers, invoked in registration order on every
// iteration. Pollers which are also Runnable are started with the loop.
func (l *Loop) AddPoller(pollers ...Poller) *Loop {
	l.pollers = append(l.pollers, pollers...)
	for _, p := range pollers {
		if runner, ok := p.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnables started and stopped together with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Post schedules fn to run on the loop goroutine at the start of the
// next iteration. It never blocks.
func (l *Loop) Post(fn func()) {
	l.lock.Lock()
	l.posted.append(&postItem{fn: fn})
	l.lock.Unlock()
	l.TriggerNext()
}

// Do runs fn on the loop goroutine and waits for it to complete.
// It must not be called from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	doneCh := make(chan struct{})
	l.Post(func() {
		fn()
		close(doneCh)
	})
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNext schedules the next iteration to be executed
// immediately after the current iteration.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer func() {
		if err := runner.Wait(); err != nil {
			glog.Errorf("loop runners: %v", err)
		}
	}()

	ticker := time.NewTicker(l.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunIteration(true)
		case <-l.wakeUpCh:
			l.RunIteration(true)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		glog.Fatalln(err)
	}
}

// Wait keeps the device alive for d without processing input.
// It is a spin: it must be called from the loop goroutine and returns
// only when d has elapsed.
func (l *Loop) Wait(d time.Duration) {
	deadline := l.Clock.Now().Add(d)
	for l.Clock.Now().Before(deadline) {
		l.RunIteration(false)
		l.Sleep(l.interval())
	}
}

// RunIteration runs posted functions then every poller once.
func (l *Loop) RunIteration(processInput bool) {
	var posted postList
	l.lock.Lock()
	posted.splice(&l.posted)
	l.lock.Unlock()
	for item := posted.head; item != nil; item = item.next {
		item.fn()
	}
	for _, p := range l.pollers {
		p.Poll(processInput)
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (l *Loop) interval() time.Duration {
	if l.Interval > 0 {
		return l.Interval
	}
	return DefaultInterval
}

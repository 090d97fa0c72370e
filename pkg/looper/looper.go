// Package looper provides a single-threaded task queue. Code that runs only on
// a looper needs no locks of its own; delayed tasks are how it waits.
package looper

import (
	"context"
	"sync"
	"time"
)

// Looper runs posted tasks one at a time, in order
type Looper interface {
	Post(fn func())
	// PostDelayed runs fn after d. The returned cancel is safe to call at
	// any time, from any goroutine, more than once.
	PostDelayed(d time.Duration, fn func()) (cancel func())
	Now() time.Time
}

// EventLoop is a Looper backed by one goroutine. Its queue is unbounded, so
// Post never blocks, including when a task posts back to its own loop.
type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	signal  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ Looper = (*EventLoop)(nil)

// NewEventLoop creates a loop; queue is the initial queue capacity
func NewEventLoop(queue int) *EventLoop {
	if queue < 1 {
		queue = 64
	}
	return &EventLoop{
		pending: make([]func(), 0, queue),
		signal:  make(chan struct{}, 1),
		cancel:  func() {},
		done:    make(chan struct{}),
	}
}

func (l *EventLoop) Run(ctx context.Context) error {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.signal:
				for _, fn := range l.take() {
					fn()
				}
			}
		}
	}()
	return nil
}

func (l *EventLoop) Interrupt() error {
	l.cancel()
	return nil
}

// Done is closed once the loop has stopped
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) Now() time.Time {
	return time.Now()
}

func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// take empties the queue; tasks posted while the batch runs wait for the next signal
func (l *EventLoop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

func (l *EventLoop) PostDelayed(d time.Duration, fn func()) func() {
	var (
		mu        sync.Mutex
		cancelled bool
	)
	run := func() {
		mu.Lock()
		c := cancelled
		mu.Unlock()
		if !c {
			fn()
		}
	}
	t := time.AfterFunc(d, func() { l.Post(run) })
	return func() {
		t.Stop()
		mu.Lock()
		cancelled = true
		mu.Unlock()
	}
}

// Sync posts fn and waits for it to finish
func (l *EventLoop) Sync(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

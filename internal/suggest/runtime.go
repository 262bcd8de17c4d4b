package suggest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Loop.Call once Run has returned. Nothing will
// run on the loop again, so its state may be touched from the caller.
var ErrStopped = errors.New("suggest: loop stopped")

// ErrClosed is returned by Loop.Call after Close.
var ErrClosed = errors.New("suggest: loop closed")

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Runtime schedules work for a Completer. Callbacks passed to AfterFunc and
// Post run on the owner loop, one at a time, so the Completer needs no locks.
// Work passed to Go runs off the loop and must hand results back with Post.
type Runtime interface {
	AfterFunc(d time.Duration, f func()) Timer
	Go(f func())
	Post(f func())
}

// Loop is a cooperative event loop: a single goroutine runs every posted
// callback to completion before starting the next.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	closeMu sync.Once

	exited   chan struct{}
	exitOnce sync.Once
}

// NewLoop returns a loop that is idle until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.exitOnce.Do(func() { close(l.exited) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			next := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			next()
		}
	}
}

// Post enqueues f. It never blocks, including when called from the loop.
func (l *Loop) Post(f func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs f on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		f()
	})
	select {
	case <-finished:
		return nil
	case <-l.exited:
		return ErrStopped
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs f on its own goroutine.
func (l *Loop) Go(f func()) {
	go f()
}

// AfterFunc posts f to the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

// Close stops Run and drops any queued callbacks.
func (l *Loop) Close() {
	l.closeMu.Do(func() {
		close(l.done)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
	})
}

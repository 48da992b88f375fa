// Package dispatch runs wallet operations on a bounded pool of background
// workers and delivers each terminal result, exactly once, on a designated
// foreground Loop.
package dispatch

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Loop is the designated foreground context. Callbacks posted to it run
// serially, in posting order, on the goroutine that calls Run.
//
// Post never blocks, so a worker delivering a result can never deadlock
// against a foreground callback that is itself dispatching new work.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	logger  *log.Entry
}

// NewLoop creates a Loop. A nil logger uses the standard logrus logger.
func NewLoop(logger *log.Entry) *Loop {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post queues fn for execution on the loop. It reports false if the loop is
// closed, in which case fn will never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	l.signal()
	return true
}

// Run executes posted callbacks until ctx is done or the loop is closed.
// After Close, Run drains everything already posted and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.invoke(fn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		l.mu.Lock()
		done := l.closed && len(l.pending) == 0
		l.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Close stops the loop from accepting callbacks.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// Pending returns the number of callbacks waiting to run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

// invoke runs one callback; a panicking callback is logged and does not stop the loop.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("panic", r).Error("foreground callback panicked")
		}
	}()
	fn()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

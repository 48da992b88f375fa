package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

type task struct {
	op  string
	run func()
}

// Dispatcher runs operations on a fixed number of workers. Enqueueing blocks
// while the queue is full. Dispatched operations cannot be cancelled.
type Dispatcher struct {
	loop      *Loop
	workers   int
	queueSize int
	logger    *log.Entry
	registry  prometheus.Registerer
	metrics   *dispatchMetrics

	tasks  chan task
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of background workers (default: 4).
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets how many operations may wait for a worker (default: 64).
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.queueSize = n
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *log.Entry) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithRegisterer registers the dispatcher metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.registry = reg
	}
}

// NewDispatcher starts the worker pool. Results are delivered on loop.
func NewDispatcher(loop *Loop, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		loop:      loop,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		logger:    log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.metrics = newDispatchMetrics(d.registry)
	d.tasks = make(chan task, d.queueSize)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Loop returns the foreground loop results are delivered on.
func (d *Dispatcher) Loop() *Loop {
	return d.loop
}

// Close stops accepting operations and waits for queued ones to finish.
// Results of those operations are still posted to the loop.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.metrics.queued.Dec()
		d.metrics.inFlight.Inc()
		t.run()
		d.metrics.inFlight.Dec()
	}
}

func (d *Dispatcher) enqueue(t task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.metrics.queued.Inc()
	d.tasks <- t
	return true
}

func (d *Dispatcher) deliver(op string, fn func()) {
	if !d.loop.Post(fn) {
		d.metrics.dropped.WithLabelValues(op).Inc()
		d.logger.WithField("op", op).Error("foreground loop closed, result dropped")
	}
}

func (d *Dispatcher) record(op string, err error, elapsed time.Duration) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = strings.ToLower(string(errors.CodeOf(err)))
	}
	d.metrics.tasks.WithLabelValues(op, outcome).Inc()
	d.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Go runs fn on a worker and posts its Result to the dispatcher's Loop.
// cb is invoked exactly once, on the loop, even if fn panics or the
// dispatcher is closed. Errors that are not wallet errors are wrapped as
// UNKNOWN_ERROR.
//
// The exception is a closed Loop: nothing runs callbacks any more, so a
// result that arrives after Loop.Close is dropped, logged and counted in
// wallet_dispatch_dropped_total. Close the dispatcher before the loop and
// drain the loop with Run to receive every result.
func Go[T any](d *Dispatcher, op string, fn func() (T, error), cb stellarwallet.Callback[T]) {
	deliver := func(res stellarwallet.Result[T]) {
		if cb == nil {
			return
		}
		d.deliver(op, func() { cb(res) })
	}

	accepted := d.enqueue(task{op: op, run: func() {
		start := time.Now()
		res := invoke(fn)
		d.record(op, res.Err, time.Since(start))
		if res.Err != nil {
			d.logger.WithField("op", op).WithError(res.Err).Debug("operation failed")
		}
		deliver(res)
	}})
	if !accepted {
		res := stellarwallet.Result[T]{Err: errors.NewDispatchError(errors.UNKNOWN_ERROR, "dispatcher is closed", nil)}
		d.record(op, res.Err, 0)
		deliver(res)
	}
}

// Await runs fn on a worker and waits for its result on the calling
// goroutine instead of the loop. Returning early because ctx is done does
// not stop the operation.
func Await[T any](ctx context.Context, d *Dispatcher, op string, fn func() (T, error)) (T, error) {
	done := make(chan stellarwallet.Result[T], 1)

	accepted := d.enqueue(task{op: op, run: func() {
		start := time.Now()
		res := invoke(fn)
		d.record(op, res.Err, time.Since(start))
		done <- res
	}})
	if !accepted {
		var zero T
		return zero, errors.NewDispatchError(errors.UNKNOWN_ERROR, "dispatcher is closed", nil)
	}

	select {
	case res := <-done:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, errors.NewDispatchError(errors.NETWORK_ERROR, "stopped waiting for "+op, ctx.Err())
	}
}

func invoke[T any](fn func() (T, error)) (res stellarwallet.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = stellarwallet.Result[T]{
				Err: errors.NewDispatchError(errors.UNKNOWN_ERROR, fmt.Sprintf("operation panicked: %v", r), nil),
			}
		}
	}()

	v, err := fn()
	if err != nil && errors.CodeOf(err) == "" {
		err = errors.NewDispatchError(errors.UNKNOWN_ERROR, "operation failed", err)
	}
	return stellarwallet.Result[T]{Value: v, Err: err}
}

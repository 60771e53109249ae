// Package debounce delays propagation of a rapidly changing value until it has been
// stable for a quiet period, e.g. search text typed keystroke by keystroke.
package debounce

import (
	"sync"
	"time"
)

// Timer is the handle returned by an AfterFunc
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type options struct {
	afterFunc AfterFunc
}

type Option func(*options)

// WithAfterFunc replaces the timer source (tests use a manual clock)
func WithAfterFunc(fn AfterFunc) Option {
	return func(o *options) {
		o.afterFunc = fn
	}
}

// Value holds a settled value and at most one pending update. A pending update is
// promoted only after delay has passed without another change; each change stops
// the previous timer and starts a new window.
type Value[T comparable] struct {
	mu         sync.Mutex
	delay      time.Duration
	settled    T
	pending    T
	hasPending bool
	timer      Timer
	generation uint64
	stopped    bool
	changes    chan T
	afterFunc  AfterFunc
}

func New[T comparable](initial T, delay time.Duration, opts ...Option) *Value[T] {
	o := options{afterFunc: realAfterFunc}
	for _, opt := range opts {
		opt(&o)
	}
	return &Value[T]{
		delay:     delay,
		settled:   initial,
		changes:   make(chan T, 1),
		afterFunc: o.afterFunc,
	}
}

// Observe records the latest input and returns the currently settled value
func (v *Value[T]) Observe(value T) T {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stopped {
		return v.settled
	}
	if v.hasPending && value == v.pending {
		return v.settled
	}
	if !v.hasPending && value == v.settled {
		return v.settled
	}

	v.cancelLocked()
	v.pending = value
	v.hasPending = true
	v.generation++
	gen := v.generation
	v.timer = v.afterFunc(v.delay, func() { v.fire(gen) })
	return v.settled
}

// Settled returns the last settled value
func (v *Value[T]) Settled() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

// Changes delivers settled values. Only the latest unread value is kept.
func (v *Value[T]) Changes() <-chan T {
	return v.changes
}

// SetDelay changes the quiet period for windows started after the call
func (v *Value[T]) SetDelay(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delay = d
}

// Flush settles the pending value immediately, if there is one
func (v *Value[T]) Flush() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hasPending && !v.stopped {
		v.cancelLocked()
		v.settleLocked()
	}
	return v.settled
}

// Stop discards any pending value and closes Changes. Observe becomes a no-op.
func (v *Value[T]) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped {
		return
	}
	v.cancelLocked()
	v.stopped = true
	close(v.changes)
}

func (v *Value[T]) fire(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// A superseded timer can still fire if Stop lost the race
	if v.stopped || gen != v.generation || !v.hasPending {
		return
	}
	v.timer = nil
	v.settleLocked()
}

func (v *Value[T]) settleLocked() {
	v.settled = v.pending
	v.hasPending = false
	var zero T
	v.pending = zero

	select {
	case <-v.changes:
	default:
	}
	v.changes <- v.settled
}

func (v *Value[T]) cancelLocked() {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.generation++
}

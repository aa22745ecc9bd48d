package signal

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/google/uuid"
)

// DispatchMode is the delivery policy of a listener.
type DispatchMode int

const (
	// DispatchImmediate runs the callback on the signal's default executor,
	// which is the firing goroutine unless configured otherwise.
	DispatchImmediate DispatchMode = iota

	// DispatchOnExecutor submits the callback to an explicit executor.
	DispatchOnExecutor

	// DispatchDelayed coalesces values and delivers the latest one after a delay.
	DispatchDelayed
)

// String returns a human-readable mode name.
func (m DispatchMode) String() string {
	switch m {
	case DispatchImmediate:
		return "immediate"
	case DispatchOnExecutor:
		return "executor"
	case DispatchDelayed:
		return "delayed"
	default:
		return "unknown"
	}
}

// Listener is a single subscription to a Signal. It is returned by Listen
// and configured with the chainable Filter, DispatchOn, QueueAndDelayBy and
// Once methods. Configure a listener before values are fired at it.
type Listener[T any] struct {
	id     string
	signal *Signal[T]
	owner  Owner
	fn     func(T)

	cancelled atomic.Bool

	mu      sync.Mutex // guards configuration and the coalescing state below
	filter  func(T) bool
	target  dispatch.Executor
	delay   time.Duration
	delayed bool
	once    bool

	// Coalescing state: idle while !scheduled, scheduled while a timer is
	// armed. pending always holds the latest value accepted since the
	// timer was armed.
	scheduled bool
	pending   T
	timer     dispatch.Timer
}

func newListener[T any](s *Signal[T], owner Owner, fn func(T)) *Listener[T] {
	return &Listener[T]{
		id:     uuid.NewString(),
		signal: s,
		owner:  owner,
		fn:     fn,
	}
}

// ID returns the unique listener identifier.
func (l *Listener[T]) ID() string {
	return l.id
}

// Owner returns the owner the listener is bound to.
func (l *Listener[T]) Owner() Owner {
	return l.owner
}

// IsCancelled returns true once Cancel has been called or the listener was
// pruned because its owner died.
func (l *Listener[T]) IsCancelled() bool {
	return l.cancelled.Load()
}

// Alive reports whether the listener can still receive values.
func (l *Listener[T]) Alive() bool {
	return !l.cancelled.Load() && l.owner != nil && l.owner.Alive()
}

// Mode returns the configured delivery policy.
func (l *Listener[T]) Mode() DispatchMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modeLocked()
}

func (l *Listener[T]) modeLocked() DispatchMode {
	switch {
	case l.delayed:
		return DispatchDelayed
	case l.target != nil:
		return DispatchOnExecutor
	default:
		return DispatchImmediate
	}
}

// Filter sets a predicate; values for which it returns false are dropped
// without affecting the subscription. The predicate runs right before the
// callback. Delayed listeners also run it when a value is fired, so
// rejected values never replace the pending one. Predicates should be pure.
func (l *Listener[T]) Filter(pred func(T) bool) *Listener[T] {
	if l.cancelled.Load() {
		return l
	}
	l.mu.Lock()
	l.filter = pred
	l.mu.Unlock()
	return l
}

// DispatchOn runs the callback on e instead of the signal's default
// executor. Combined with QueueAndDelayBy, the delayed delivery runs on e.
func (l *Listener[T]) DispatchOn(e dispatch.Executor) *Listener[T] {
	if e == nil {
		panic(fmt.Errorf("DispatchOn: %w", ErrNilExecutor))
	}
	if l.cancelled.Load() {
		return l
	}
	l.mu.Lock()
	l.target = e
	l.mu.Unlock()
	return l
}

// QueueAndDelayBy switches the listener to delayed, coalesced delivery.
// Each fired value replaces the pending one; the first value after an idle
// period arms a timer for d, and when it expires the callback receives
// whatever value is pending then. A zero delay still delivers
// asynchronously. A negative delay panics.
func (l *Listener[T]) QueueAndDelayBy(d time.Duration) *Listener[T] {
	if d < 0 {
		panic(fmt.Errorf("QueueAndDelayBy(%v): %w", d, ErrNegativeDelay))
	}
	if l.cancelled.Load() {
		return l
	}
	l.mu.Lock()
	l.delayed = true
	l.delay = d
	l.mu.Unlock()
	return l
}

// Once cancels the listener after its first callback invocation.
func (l *Listener[T]) Once() *Listener[T] {
	if l.cancelled.Load() {
		return l
	}
	l.mu.Lock()
	l.once = true
	l.mu.Unlock()
	return l
}

// Cancel stops the listener and removes it from its signal. It is safe to
// call from any goroutine, any number of times, including from inside the
// listener's own callback. A delivery that already passed its cancellation
// check may still complete.
func (l *Listener[T]) Cancel() {
	l.cancel()
}

// cancel reports whether this call performed the cancellation.
func (l *Listener[T]) cancel() bool {
	if !l.markCancelled() {
		return false
	}
	l.signal.detach(l)
	return true
}

// markCancelled flips the cancelled flag and tears down pending delayed
// state without touching the signal's registry.
func (l *Listener[T]) markCancelled() bool {
	if !l.cancelled.CompareAndSwap(false, true) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	var zero T
	l.pending = zero
	l.scheduled = false
	return true
}

// deliver routes a fired value according to the dispatch policy.
func (l *Listener[T]) deliver(v T) {
	if !l.Alive() {
		return
	}

	l.mu.Lock()
	mode := l.modeLocked()
	target := l.target
	delay := l.delay
	filter := l.filter
	l.mu.Unlock()

	switch mode {
	case DispatchDelayed:
		if filter != nil && !filter(v) {
			l.signal.cfg.observer.Dropped(l.signal.cfg.name, mode, DropFiltered)
			return
		}
		l.enqueue(v, target, delay)
	case DispatchOnExecutor:
		l.submit(target, mode, func() { l.invoke(v, mode) })
	default:
		l.submit(l.signal.cfg.executor, mode, func() { l.invoke(v, mode) })
	}
}

// submit hands task to e and reports a rejection.
func (l *Listener[T]) submit(e dispatch.Executor, mode DispatchMode, task func()) bool {
	if err := e.Submit(task); err != nil {
		l.signal.cfg.logger.Warn().
			Err(err).
			Str("signal", l.signal.cfg.name).
			Str("listener", l.id).
			Str("executor", e.Name()).
			Msg("delivery rejected by executor")
		l.signal.cfg.observer.Dropped(l.signal.cfg.name, mode, DropRejected)
		return false
	}
	return true
}

// enqueue stores v as the pending value and arms the delivery timer if the
// listener is idle.
func (l *Listener[T]) enqueue(v T, target dispatch.Executor, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancelled.Load() {
		return
	}

	l.pending = v
	if l.scheduled {
		l.signal.cfg.observer.Coalesced(l.signal.cfg.name)
		return
	}

	l.scheduled = true
	l.timer = l.signal.cfg.scheduler.AfterFunc(delay, func() {
		if target == nil {
			l.flush()
			return
		}
		if !l.submit(target, DispatchDelayed, l.flush) {
			l.reset()
		}
	})
}

// flush takes the pending value, returns the listener to idle and invokes
// the callback.
func (l *Listener[T]) flush() {
	l.mu.Lock()
	v := l.pending
	var zero T
	l.pending = zero
	l.scheduled = false
	l.timer = nil
	l.mu.Unlock()

	l.invoke(v, DispatchDelayed)
}

// reset returns the listener to idle, discarding the pending value.
func (l *Listener[T]) reset() {
	l.mu.Lock()
	var zero T
	l.pending = zero
	l.scheduled = false
	l.timer = nil
	l.mu.Unlock()
}

// invoke runs the callback if the listener is still alive and the filter
// accepts v.
func (l *Listener[T]) invoke(v T, mode DispatchMode) {
	name := l.signal.cfg.name
	obs := l.signal.cfg.observer

	if !l.Alive() {
		obs.Dropped(name, mode, DropCancelled)
		return
	}

	l.mu.Lock()
	filter := l.filter
	once := l.once
	l.mu.Unlock()

	if filter != nil && !filter(v) {
		obs.Dropped(name, mode, DropFiltered)
		return
	}

	// A once-listener is consumed by whichever delivery cancels it first.
	if once && !l.cancel() {
		obs.Dropped(name, mode, DropCancelled)
		return
	}

	start := time.Now()
	l.fn(v)
	obs.Delivered(name, mode, start, time.Since(start))
}

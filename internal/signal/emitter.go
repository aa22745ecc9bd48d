package signal

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// kindSignal is the type-erased view of a Signal held by an Emitter.
type kindSignal interface {
	payloadType() reflect.Type
	ListenerCount() int
	CancelAll()
}

func (s *Signal[T]) payloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Emitter is a named bundle of signals, one per event kind. Signals are
// created on first access through On and live as long as the Emitter.
type Emitter struct {
	opts []Option

	mu      sync.Mutex
	signals map[string]kindSignal
}

// NewEmitter creates an Emitter. The options are applied to every signal
// it creates, followed by WithName(kind).
func NewEmitter(opts ...Option) *Emitter {
	return &Emitter{
		opts:    opts,
		signals: make(map[string]kindSignal),
	}
}

// On returns the signal for kind, creating it on first use. Every call
// with the same kind returns the same signal. Requesting a kind with a
// payload type different from the one it was created with panics.
func On[T any](e *Emitter, kind string) *Signal[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.signals[kind]; ok {
		s, ok := existing.(*Signal[T])
		if !ok {
			panic(fmt.Errorf("kind %q: have %v, want %v: %w",
				kind, existing.payloadType(), reflect.TypeFor[T](), ErrKindTypeMismatch))
		}
		return s
	}

	opts := append(slices.Clip(e.opts), WithName(kind))
	s := New[T](opts...)
	e.signals[kind] = s
	return s
}

// Kinds returns the created kinds in sorted order.
func (e *Emitter) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	kinds := make([]string, 0, len(e.signals))
	for k := range e.signals {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Len returns the number of created kinds.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.signals)
}

// ListenerCount returns the live listener count summed over all kinds.
func (e *Emitter) ListenerCount() int {
	n := 0
	for _, s := range e.snapshot() {
		n += s.ListenerCount()
	}
	return n
}

// CancelAll cancels every listener of every kind. The kinds themselves
// remain.
func (e *Emitter) CancelAll() {
	for _, s := range e.snapshot() {
		s.CancelAll()
	}
}

func (e *Emitter) snapshot() []kindSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]kindSignal, 0, len(e.signals))
	for _, s := range e.signals {
		out = append(out, s)
	}
	return out
}

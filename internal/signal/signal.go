package signal

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Signal is a typed event stream. Listeners register with Listen and
// receive every value passed to Fire while they are alive.
//
// A Signal must not be copied after first use.
type Signal[T any] struct {
	cfg settings

	mu        sync.Mutex // guards listeners, last and hasLast
	listeners []*Listener[T]
	last      T
	hasLast   bool

	fires atomic.Uint64
}

// New creates a Signal.
func New[T any](opts ...Option) *Signal[T] {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Signal[T]{cfg: cfg}
}

// Listen is a convenience for s.Listen(Weak(owner), fn).
func Listen[T, O any](s *Signal[T], owner *O, fn func(T)) *Listener[T] {
	return s.Listen(Weak(owner), fn)
}

// Name returns the signal name.
func (s *Signal[T]) Name() string {
	return s.cfg.name
}

// Listen registers fn for as long as owner is alive. The returned listener
// can be configured further or cancelled. If owner is already dead the
// listener is returned cancelled and never registered.
//
// fn must not capture owner strongly when owner is a Weak reference,
// otherwise the owner can never be collected.
func (s *Signal[T]) Listen(owner Owner, fn func(T)) *Listener[T] {
	l, _, _ := s.register(s.newListener(owner, fn))
	return l
}

// ListenOnce registers a listener that cancels itself after its first
// callback.
func (s *Signal[T]) ListenOnce(owner Owner, fn func(T)) *Listener[T] {
	return s.Listen(owner, fn).Once()
}

// ListenPast registers fn like Listen and, if the signal retains its last
// value (WithRetainLast) and has fired, immediately calls fn with it on
// the calling goroutine.
func (s *Signal[T]) ListenPast(owner Owner, fn func(T)) *Listener[T] {
	return s.listenPast(s.newListener(owner, fn))
}

// ListenPastOnce is ListenPast for a single callback. When a retained value
// is replayed the listener is consumed by it and later fires are not
// delivered; otherwise it behaves like ListenOnce.
func (s *Signal[T]) ListenPastOnce(owner Owner, fn func(T)) *Listener[T] {
	l := s.newListener(owner, fn)
	l.once = true
	return s.listenPast(l)
}

func (s *Signal[T]) listenPast(l *Listener[T]) *Listener[T] {
	l, last, ok := s.register(l)
	if ok {
		l.invoke(last, DispatchImmediate)
	}
	return l
}

// register adds l to the registry and returns the retained value, if any.
// A listener whose owner is already dead is marked cancelled instead.
func (s *Signal[T]) register(l *Listener[T]) (*Listener[T], T, bool) {
	var zero T
	if !l.Alive() {
		l.markCancelled()
		return l, zero, false
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	last, ok := s.last, s.hasLast
	s.mu.Unlock()

	s.cfg.logger.Debug().
		Str("signal", s.cfg.name).
		Str("listener", l.id).
		Msg("listener added")
	return l, last, ok
}

func (s *Signal[T]) newListener(owner Owner, fn func(T)) *Listener[T] {
	if fn == nil {
		panic(ErrNilCallback)
	}
	return newListener(s, owner, fn)
}

// Fire delivers v to every live listener according to its dispatch
// policy. Immediate listeners run before Fire returns, in registration
// order; queued and delayed ones run later. Fire may be called from any
// goroutine. No ordering is promised between concurrent Fire calls.
//
// The registry is snapshotted before delivery, so callbacks may call
// Listen or Cancel on this signal. A listener cancelled by another
// goroutine during a Fire may still receive that one value.
func (s *Signal[T]) Fire(v T) {
	s.fires.Add(1)

	s.mu.Lock()
	dead := s.pruneLocked()
	snapshot := slices.Clone(s.listeners)
	if s.cfg.retainLast {
		s.last = v
		s.hasLast = true
	}
	s.mu.Unlock()

	s.finishPrune(dead)
	s.cfg.observer.Fired(s.cfg.name, len(snapshot))

	for _, l := range snapshot {
		l.deliver(v)
	}
}

// ListenerCount returns the number of live listeners, pruning dead ones.
func (s *Signal[T]) ListenerCount() int {
	s.mu.Lock()
	dead := s.pruneLocked()
	n := len(s.listeners)
	s.mu.Unlock()

	s.finishPrune(dead)
	return n
}

// CancelAll cancels every listener and empties the registry.
func (s *Signal[T]) CancelAll() {
	s.mu.Lock()
	all := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range all {
		l.markCancelled()
	}

	s.cfg.logger.Debug().
		Str("signal", s.cfg.name).
		Int("cancelled", len(all)).
		Msg("all listeners cancelled")
}

// CancelFor cancels every listener bound to owner and returns how many
// were cancelled.
func (s *Signal[T]) CancelFor(owner Owner) int {
	var matched []*Listener[T]

	s.mu.Lock()
	kept := s.listeners[:0]
	for _, l := range s.listeners {
		if sameOwner(l.owner, owner) {
			matched = append(matched, l)
			continue
		}
		kept = append(kept, l)
	}
	clear(s.listeners[len(kept):])
	s.listeners = kept
	s.mu.Unlock()

	for _, l := range matched {
		l.markCancelled()
	}
	return len(matched)
}

// FireCount returns how many times Fire has been called.
func (s *Signal[T]) FireCount() uint64 {
	return s.fires.Load()
}

// LastValue returns the last fired value if the signal retains it.
func (s *Signal[T]) LastValue() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// ClearLast forgets the retained value.
func (s *Signal[T]) ClearLast() {
	s.mu.Lock()
	var zero T
	s.last = zero
	s.hasLast = false
	s.mu.Unlock()
}

// detach removes l from the registry.
func (s *Signal[T]) detach(l *Listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.listeners, l); i >= 0 {
		s.listeners = slices.Delete(s.listeners, i, i+1)
	}
}

// pruneLocked drops listeners that are no longer alive and returns them.
// The caller must hold s.mu.
func (s *Signal[T]) pruneLocked() []*Listener[T] {
	var dead []*Listener[T]
	live := s.listeners[:0]
	for _, l := range s.listeners {
		if l.Alive() {
			live = append(live, l)
			continue
		}
		dead = append(dead, l)
	}
	clear(s.listeners[len(live):])
	s.listeners = live
	return dead
}

// finishPrune tears down pruned listeners outside the registry lock.
func (s *Signal[T]) finishPrune(dead []*Listener[T]) {
	if len(dead) == 0 {
		return
	}
	for _, l := range dead {
		l.markCancelled()
	}
	s.cfg.observer.Pruned(s.cfg.name, len(dead))
	s.cfg.logger.Debug().
		Str("signal", s.cfg.name).
		Int("pruned", len(dead)).
		Msg("dead listeners pruned")
}

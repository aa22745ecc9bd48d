package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds executors by name so listeners can be pointed at a
// named target. The Immediate executor is always registered.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a registry containing only Immediate.
func NewRegistry() *Registry {
	return &Registry{
		executors: map[string]Executor{
			ImmediateName: Immediate,
		},
	}
}

// Register adds an executor under its own name.
func (r *Registry) Register(e Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateExecutor, name)
	}
	r.executors[name] = e
	return nil
}

// Get returns the executor registered under name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[name]
	return e, ok
}

// MustGet is like Get but panics if name is unknown.
func (r *Registry) MustGet(name string) Executor {
	e, ok := r.Get(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownExecutor, name))
	}
	return e
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queues returns the registered queues in name order.
func (r *Registry) Queues() []*Queue {
	var queues []*Queue
	for _, name := range r.Names() {
		e, _ := r.Get(name)
		if q, ok := e.(*Queue); ok {
			queues = append(queues, q)
		}
	}
	return queues
}

// StartAll starts every queue that is not running yet.
func (r *Registry) StartAll() error {
	for _, q := range r.Queues() {
		if err := q.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return fmt.Errorf("starting executor %s: %w", q.Name(), err)
		}
	}
	return nil
}

// StopAll stops every running queue, draining their buffers.
func (r *Registry) StopAll(ctx context.Context) error {
	var errs []error
	for _, q := range r.Queues() {
		if err := q.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
			errs = append(errs, fmt.Errorf("stopping executor %s: %w", q.Name(), err))
		}
	}
	return errors.Join(errs...)
}

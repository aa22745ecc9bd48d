package signal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/signals/internal/signal/dispatch"
)

// testOwner carries a pointer field so the runtime allocates it on its own
// and a weak reference to it dies with it.
type testOwner struct {
	name string
}

type recordingObserver struct {
	mu        sync.Mutex
	fired     int
	live      []int
	delivered map[DispatchMode]int
	dropped   map[DropReason]int
	coalesced int
	pruned    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		delivered: make(map[DispatchMode]int),
		dropped:   make(map[DropReason]int),
	}
}

func (r *recordingObserver) Fired(_ string, live int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired++
	r.live = append(r.live, live)
}

func (r *recordingObserver) Delivered(_ string, mode DispatchMode, _ time.Time, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered[mode]++
}

func (r *recordingObserver) Dropped(_ string, _ DispatchMode, reason DropReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[reason]++
}

func (r *recordingObserver) Coalesced(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coalesced++
}

func (r *recordingObserver) Pruned(_ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned += n
}

func (r *recordingObserver) droppedFor(reason DropReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[reason]
}

func (r *recordingObserver) deliveredFor(mode DispatchMode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered[mode]
}

func expectPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic, got %T: %v", r, r)
		}
		if !errors.Is(err, target) {
			t.Errorf("panic %v does not wrap %v", err, target)
		}
	}()
	fn()
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delivery")
	}
	var zero T
	return zero
}

// countingExecutor runs tasks inline and counts submissions.
func countingExecutor(n *int) dispatch.Executor {
	return dispatch.Func{
		ExecutorName: "counting",
		SubmitFunc: func(task func()) error {
			*n++
			task()
			return nil
		},
	}
}

func rejectingExecutor(err error) dispatch.Executor {
	return dispatch.Func{
		ExecutorName: "rejecting",
		SubmitFunc:   func(func()) error { return err },
	}
}

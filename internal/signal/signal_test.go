package signal

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSignal_FireImmediate(t *testing.T) {
	sig := New[string]()
	owner := &testOwner{name: "panel"}

	var got []string
	Listen(sig, owner, func(s string) { got = append(got, s) })

	sig.Fire("a")
	sig.Fire("b")

	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("got %v, want [a b]", got)
	}
	runtime.KeepAlive(owner)
}

func TestSignal_RegistrationOrder(t *testing.T) {
	sig := New[int]()

	var order []int
	for i := 0; i < 5; i++ {
		sig.Listen(Forever, func(int) { order = append(order, i) })
	}
	sig.Fire(0)

	if !slices.Equal(order, []int{0, 1, 2, 3, 4}) {
		t.Errorf("delivery order = %v", order)
	}
}

func TestSignal_NoListeners(t *testing.T) {
	sig := New[int]()
	sig.Fire(1)
	if sig.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", sig.ListenerCount())
	}
	if sig.FireCount() != 1 {
		t.Errorf("FireCount() = %d, want 1", sig.FireCount())
	}
}

func TestSignal_WeakOwnerCollected(t *testing.T) {
	sig := New[int]()
	var calls atomic.Int32

	func() {
		owner := &testOwner{name: "transient"}
		Listen(sig, owner, func(int) { calls.Add(1) })
		sig.Fire(1)
	}()

	for i := 0; i < 10 && sig.ListenerCount() > 0; i++ {
		runtime.GC()
	}
	if n := sig.ListenerCount(); n != 0 {
		t.Fatalf("ListenerCount() = %d after owner collected, want 0", n)
	}

	sig.Fire(2)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback ran %d times, want 1", n)
	}
}

func TestSignal_OwnerDeadAtListen(t *testing.T) {
	sig := New[int]()
	lt := NewLifetime()
	lt.End()

	called := false
	l := sig.Listen(lt, func(int) { called = true })
	if l.Alive() {
		t.Error("listener for dead owner should not be alive")
	}
	if !l.IsCancelled() {
		t.Error("listener for dead owner should report cancelled")
	}
	if sig.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", sig.ListenerCount())
	}

	sig.Fire(1)
	if called {
		t.Error("callback ran for dead owner")
	}

	if l := sig.ListenPast(lt, func(int) {}); !l.IsCancelled() {
		t.Error("ListenPast for dead owner should return a cancelled listener")
	}

	var nilOwner *testOwner
	if l := Listen(sig, nilOwner, func(int) {}); l.Alive() || !l.IsCancelled() {
		t.Error("listener for nil pointer owner should be dead and cancelled")
	}
}

func TestSignal_PerOwnerIsolation(t *testing.T) {
	rec := newRecordingObserver()
	sig := New[int](WithObserver(rec))

	a, b := NewLifetime(), NewLifetime()
	var gotA, gotB []int
	sig.Listen(a, func(v int) { gotA = append(gotA, v) })
	sig.Listen(b, func(v int) { gotB = append(gotB, v) })

	sig.Fire(1)
	a.End()
	sig.Fire(2)

	if !slices.Equal(gotA, []int{1}) {
		t.Errorf("owner A got %v, want [1]", gotA)
	}
	if !slices.Equal(gotB, []int{1, 2}) {
		t.Errorf("owner B got %v, want [1 2]", gotB)
	}
	if sig.ListenerCount() != 1 {
		t.Errorf("ListenerCount() = %d, want 1", sig.ListenerCount())
	}
	if rec.pruned != 1 {
		t.Errorf("pruned = %d, want 1", rec.pruned)
	}
}

func TestSignal_ListenDuringFire(t *testing.T) {
	sig := New[int]()

	var late []int
	sig.Listen(Forever, func(v int) {
		if v == 1 {
			sig.Listen(Forever, func(v int) { late = append(late, v) })
		}
	})

	sig.Fire(1)
	if len(late) != 0 {
		t.Errorf("listener added during fire received %v", late)
	}
	sig.Fire(2)
	if !slices.Equal(late, []int{2}) {
		t.Errorf("late listener got %v, want [2]", late)
	}
}

func TestSignal_CancelAll(t *testing.T) {
	sig := New[int]()

	var calls int
	l1 := sig.Listen(Forever, func(int) { calls++ })
	l2 := sig.Listen(Forever, func(int) { calls++ })

	sig.CancelAll()
	sig.Fire(1)

	if calls != 0 {
		t.Errorf("calls = %d after CancelAll, want 0", calls)
	}
	if !l1.IsCancelled() || !l2.IsCancelled() {
		t.Error("listeners should report cancelled")
	}
	if sig.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", sig.ListenerCount())
	}
}

func TestSignal_CancelFor(t *testing.T) {
	sig := New[int]()
	a := &testOwner{name: "a"}
	b := &testOwner{name: "b"}

	var gotA, gotB int
	Listen(sig, a, func(int) { gotA++ })
	Listen(sig, a, func(int) { gotA++ })
	Listen(sig, b, func(int) { gotB++ })

	if n := sig.CancelFor(Weak(a)); n != 2 {
		t.Errorf("CancelFor(a) = %d, want 2", n)
	}
	sig.Fire(1)

	if gotA != 0 || gotB != 1 {
		t.Errorf("gotA=%d gotB=%d, want 0 and 1", gotA, gotB)
	}
	if n := sig.CancelFor(NewLifetime()); n != 0 {
		t.Errorf("CancelFor(unknown) = %d, want 0", n)
	}
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestSignal_ListenOnce(t *testing.T) {
	sig := New[int]()

	var got []int
	l := sig.ListenOnce(Forever, func(v int) { got = append(got, v) })

	sig.Fire(1)
	sig.Fire(2)

	if !slices.Equal(got, []int{1}) {
		t.Errorf("got %v, want [1]", got)
	}
	if !l.IsCancelled() {
		t.Error("once listener should be cancelled after first delivery")
	}
	if sig.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", sig.ListenerCount())
	}
}

func TestSignal_ListenOnceFilterNotConsumed(t *testing.T) {
	sig := New[int]()

	var got []int
	sig.ListenOnce(Forever, func(v int) { got = append(got, v) }).
		Filter(func(v int) bool { return v > 10 })

	sig.Fire(1)
	sig.Fire(20)
	sig.Fire(30)

	if !slices.Equal(got, []int{20}) {
		t.Errorf("got %v, want [20]", got)
	}
}

func TestSignal_RetainLast(t *testing.T) {
	sig := New[string](WithRetainLast())

	if _, ok := sig.LastValue(); ok {
		t.Error("LastValue() should be unset before first fire")
	}

	var early []string
	sig.ListenPast(Forever, func(s string) { early = append(early, s) })
	if len(early) != 0 {
		t.Errorf("ListenPast before any fire delivered %v", early)
	}

	sig.Fire("first")
	sig.Fire("second")

	var late []string
	sig.ListenPast(Forever, func(s string) { late = append(late, s) })
	if !slices.Equal(late, []string{"second"}) {
		t.Errorf("ListenPast replayed %v, want [second]", late)
	}

	sig.Fire("third")
	if !slices.Equal(late, []string{"second", "third"}) {
		t.Errorf("late listener got %v", late)
	}

	if v, ok := sig.LastValue(); !ok || v != "third" {
		t.Errorf("LastValue() = %q, %v", v, ok)
	}

	sig.ClearLast()
	if _, ok := sig.LastValue(); ok {
		t.Error("LastValue() should be unset after ClearLast")
	}
}

func TestSignal_ListenPastOnce(t *testing.T) {
	sig := New[int](WithRetainLast())
	sig.Fire(7)

	var got []int
	l := sig.ListenPastOnce(Forever, func(v int) { got = append(got, v) })
	if !slices.Equal(got, []int{7}) {
		t.Fatalf("replayed %v, want [7]", got)
	}
	if !l.IsCancelled() {
		t.Error("replay should consume the once listener")
	}

	sig.Fire(8)
	if !slices.Equal(got, []int{7}) {
		t.Errorf("got %v after later fire, want [7]", got)
	}
	if sig.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", sig.ListenerCount())
	}
}

func TestSignal_ListenPastOnceNothingRetained(t *testing.T) {
	sig := New[int](WithRetainLast())

	var got []int
	l := sig.ListenPastOnce(Forever, func(v int) { got = append(got, v) })
	if len(got) != 0 {
		t.Fatalf("replayed %v before any fire", got)
	}

	sig.Fire(1)
	sig.Fire(2)
	if !slices.Equal(got, []int{1}) {
		t.Errorf("got %v, want [1]", got)
	}
	if !l.IsCancelled() {
		t.Error("once listener should be cancelled after first delivery")
	}
}

func TestSignal_ListenPastWithoutRetain(t *testing.T) {
	sig := New[int]()
	sig.Fire(1)

	called := false
	sig.ListenPast(Forever, func(int) { called = true })
	if called {
		t.Error("ListenPast replayed without WithRetainLast")
	}
	if _, ok := sig.LastValue(); ok {
		t.Error("LastValue() should be unset without WithRetainLast")
	}
}

func TestSignal_Name(t *testing.T) {
	if got := New[int]().Name(); got != "signal" {
		t.Errorf("default Name() = %q", got)
	}
	if got := New[int](WithName("cursor")).Name(); got != "cursor" {
		t.Errorf("Name() = %q, want cursor", got)
	}
}

func TestSignal_NilCallbackPanics(t *testing.T) {
	sig := New[int]()
	expectPanic(t, ErrNilCallback, func() {
		sig.Listen(Forever, nil)
	})
}

func TestSignal_DefaultExecutor(t *testing.T) {
	var submitted int
	exec := countingExecutor(&submitted)
	sig := New[int](WithDefaultExecutor(exec))

	var got int
	sig.Listen(Forever, func(v int) { got = v })
	sig.Fire(7)

	if submitted != 1 {
		t.Errorf("default executor saw %d submissions, want 1", submitted)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestSignal_ConcurrentFireListenCancel(t *testing.T) {
	sig := New[int]()
	var delivered atomic.Int64

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					sig.Fire(1)
				}
			}
		}()
	}

	var listeners []*Listener[int]
	var lmu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l := sig.Listen(Forever, func(int) { delivered.Add(1) })
				lmu.Lock()
				listeners = append(listeners, l)
				lmu.Unlock()
				if j%2 == 0 {
					l.Cancel()
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	if n := sig.ListenerCount(); n != 400 {
		t.Errorf("ListenerCount() = %d, want 400", n)
	}

	for _, l := range listeners {
		l.Cancel()
	}
	before := delivered.Load()
	sig.Fire(1)
	if after := delivered.Load(); after != before {
		t.Errorf("delivered %d values after all listeners cancelled", after-before)
	}
}

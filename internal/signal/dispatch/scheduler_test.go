package dispatch

import (
	"testing"
	"time"
)

func TestManualScheduler_Advance(t *testing.T) {
	s := NewManualScheduler()

	var order []string
	s.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	s.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	s.AfterFunc(10*time.Millisecond, func() { order = append(order, "b") })

	if n := s.Advance(5 * time.Millisecond); n != 0 {
		t.Errorf("expected nothing due at 5ms, ran %d", n)
	}
	if n := s.Advance(5 * time.Millisecond); n != 2 {
		t.Errorf("expected 2 due at 10ms, ran %d", n)
	}
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", s.Pending())
	}
	s.Advance(time.Second)

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
	if s.Elapsed() != 1010*time.Millisecond {
		t.Errorf("expected elapsed 1.01s, got %v", s.Elapsed())
	}
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()

	ran := false
	timer := s.AfterFunc(time.Millisecond, func() { ran = true })

	if !timer.Stop() {
		t.Error("expected Stop() to report a pending timer")
	}
	if timer.Stop() {
		t.Error("expected second Stop() to return false")
	}
	s.Advance(time.Second)
	if ran {
		t.Error("stopped timer ran")
	}
}

func TestManualScheduler_StopAfterRun(t *testing.T) {
	s := NewManualScheduler()
	timer := s.AfterFunc(0, func() {})
	s.Advance(0)
	if timer.Stop() {
		t.Error("expected Stop() after run to return false")
	}
}

func TestManualScheduler_Reschedule(t *testing.T) {
	s := NewManualScheduler()

	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			s.AfterFunc(0, again)
		}
	}
	s.AfterFunc(0, again)

	if n := s.Advance(0); n != 3 {
		t.Errorf("expected chained zero-delay timers to run in one Advance, ran %d", n)
	}
}

func TestTimerScheduler(t *testing.T) {
	done := make(chan struct{})
	TimerScheduler{}.AfterFunc(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerScheduler_Stop(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := TimerScheduler{}.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	if !timer.Stop() {
		t.Error("expected Stop() to stop a pending timer")
	}
}

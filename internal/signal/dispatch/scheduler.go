package dispatch

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It returns false if the call
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler runs functions after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// TimerScheduler schedules with the runtime timer. The function runs on
// its own goroutine, so even a zero delay is asynchronous.
type TimerScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualScheduler is a Scheduler driven by explicit calls to Advance.
// Due functions run on the goroutine calling Advance, in deadline order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	s    *ManualScheduler
	at   time.Duration
	seq  uint64
	f    func()
	done bool
}

// NewManualScheduler creates a scheduler at elapsed time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc schedules f to run once Advance moves past d from now.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward and runs every function that became
// due, including ones scheduled by those functions. It returns the number
// of functions run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()

	ran := 0
	for {
		due := s.takeDue()
		if len(due) == 0 {
			return ran
		}
		for _, t := range due {
			t.f()
			ran++
		}
	}
}

// takeDue removes and returns the due timers in deadline order.
func (s *ManualScheduler) takeDue() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due, rest []*manualTimer
	for _, t := range s.timers {
		if t.at <= s.now {
			t.done = true
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	s.timers = rest

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due
}

// Pending returns the number of scheduled functions that have not run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Elapsed returns the total time advanced so far.
func (s *ManualScheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Stop removes the timer if it has not run yet.
func (t *manualTimer) Stop() bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	for i, other := range s.timers {
		if other == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			break
		}
	}
	return true
}

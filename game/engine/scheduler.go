package engine

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Scheduler runs a callback once after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler returns a Scheduler backed by time.AfterFunc
func RealScheduler() Scheduler {
	return realScheduler{}
}

// ManualScheduler queues callbacks until the owner fires them. It lets the
// caller own the mismatch timer, and makes tests deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	owner   *ManualScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates an empty manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc records f; it runs only when Fire or FireAll is called
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTimer{owner: s, delay: d, fn: f}
	s.pending = append(s.pending, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the number of timers that are neither stopped nor fired
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// LastDelay returns the delay of the most recently scheduled timer
func (s *ManualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return 0
	}
	return s.pending[len(s.pending)-1].delay
}

// FireAll runs every live timer in scheduling order and returns how many ran
func (s *ManualScheduler) FireAll() int {
	return s.fire(false)
}

// FireStale runs every timer, including stopped ones. It simulates a timer
// that raced its own cancellation.
func (s *ManualScheduler) FireStale() int {
	return s.fire(true)
}

func (s *ManualScheduler) fire(includeStopped bool) int {
	s.mu.Lock()
	var due []func()
	for _, t := range s.pending {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		due = append(due, t.fn)
	}
	s.pending = nil
	s.mu.Unlock()

	// Callbacks run outside the lock; they may schedule again.
	for _, fn := range due {
		fn()
	}
	return len(due)
}

package debounce

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// DefaultDelay is the default debounce window.
const DefaultDelay = 100 * time.Millisecond

// entry is a pending operation. seq distinguishes a replaced timer that
// already fired from the current one.
type entry struct {
	seq   uint64
	timer clock.Timer
	due   time.Time
}

// Scheduler delays and coalesces operations keyed by string.
type Scheduler struct {
	mu sync.Mutex

	clock clock.Clock
	delay time.Duration

	pending map[string]*entry
	seq     uint64
}

// NewScheduler creates a scheduler with a fixed delay.
// A nil clock uses the wall clock; a non-positive delay uses DefaultDelay.
func NewScheduler(clk clock.Clock, delay time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		clock:   clk,
		delay:   delay,
		pending: make(map[string]*entry),
	}
}

// Delay returns the debounce window.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Schedule runs fn after the debounce delay unless key is scheduled again
// or cancelled first. Any pending operation for key is replaced.
func (s *Scheduler) Schedule(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[key]; ok {
		existing.timer.Stop()
	}

	s.seq++
	seq := s.seq
	e := &entry{seq: seq, due: s.clock.Now().Add(s.delay)}
	e.timer = s.clock.AfterFunc(s.delay, func() {
		s.fire(key, seq, fn)
	})
	s.pending[key] = e
}

// fire runs fn if the timer identified by seq is still the current one.
func (s *Scheduler) fire(key string, seq uint64, fn func()) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok || e.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	fn()
}

// Cancel removes the pending operation for key without running it.
// Returns true if an operation was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether an operation is scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Due returns when the pending operation for key will run.
func (s *Scheduler) Due(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// CancelAll cancels every pending operation and returns how many there were.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	for key, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, key)
	}
	return n
}

// Count returns the number of pending operations.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

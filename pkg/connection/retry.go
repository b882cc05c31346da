package connection

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// pendingRetry is a scheduled retry for one key.
type pendingRetry struct {
	seq     uint64
	attempt int
	delay   time.Duration
	due     time.Time
	timer   clock.Timer
}

// RetryScheduler times retries with exponential backoff, one per key.
type RetryScheduler struct {
	mu sync.Mutex

	clock   clock.Clock
	backoff *Backoff

	pending map[string]*pendingRetry
	seq     uint64
}

// NewRetryScheduler creates a retry scheduler. A nil clock uses the wall clock.
func NewRetryScheduler(clk clock.Clock, cfg BackoffConfig) *RetryScheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &RetryScheduler{
		clock:   clk,
		backoff: NewBackoffWithConfig(cfg),
		pending: make(map[string]*pendingRetry),
	}
}

// Schedule arranges for fn to run after the backoff delay for attempt.
// A pending retry for the same key is replaced. Returns the delay used.
func (s *RetryScheduler) Schedule(key string, attempt int, fn func()) time.Duration {
	delay := s.backoff.Delay(attempt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[key]; ok {
		existing.timer.Stop()
	}

	s.seq++
	seq := s.seq
	p := &pendingRetry{
		seq:     seq,
		attempt: attempt,
		delay:   delay,
		due:     s.clock.Now().Add(delay),
	}
	p.timer = s.clock.AfterFunc(delay, func() {
		s.fire(key, seq, fn)
	})
	s.pending[key] = p
	return delay
}

func (s *RetryScheduler) fire(key string, seq uint64, fn func()) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	fn()
}

// Cancel removes the pending retry for key. Returns true if one was pending.
func (s *RetryScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether a retry is scheduled for key.
func (s *RetryScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Next returns the attempt number, delay and due time of the pending retry for key.
func (s *RetryScheduler) Next(key string) (attempt int, delay time.Duration, due time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return 0, 0, time.Time{}, false
	}
	return p.attempt, p.delay, p.due, true
}

// CancelAll cancels every pending retry and returns how many there were.
func (s *RetryScheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
	return n
}

// Count returns the number of pending retries.
func (s *RetryScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

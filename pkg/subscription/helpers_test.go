package subscription

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/livemux/pkg/log"
	"github.com/sitetrack/livemux/pkg/transport"
	"github.com/sitetrack/livemux/pkg/transport/transporttest"
)

const (
	waitFor = time.Second
	tick    = time.Millisecond
)

var epoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	clk    *testclock.Clock
	fake   *transporttest.Fake
	mgr    *Manager
	events *eventRecorder
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		clk:    testclock.NewClock(epoch),
		fake:   transporttest.NewFake(),
		events: &eventRecorder{},
	}

	cfg := DefaultConfig()
	cfg.Clock = h.clk
	cfg.EventLogger = h.events
	for _, fn := range mutate {
		fn(&cfg)
	}

	mgr, err := NewManager(h.fake, cfg)
	require.NoError(t, err)
	h.mgr = mgr
	return h
}

// waitConnected waits until the nth channel for key has been opened and
// connected, and returns it.
func (h *harness) waitConnected(t *testing.T, key string, n int) *transporttest.Channel {
	t.Helper()

	var ch *transporttest.Channel
	require.Eventually(t, func() bool {
		if h.fake.Opened() < n {
			return false
		}
		ch = h.fake.Last(key)
		return ch != nil && ch.Connected()
	}, waitFor, tick, "channel %d for %q never connected", n, key)
	return ch
}

func (h *harness) info(t *testing.T, key string) ChannelInfo {
	t.Helper()
	info, ok := h.mgr.Info(key)
	require.True(t, ok, "no record for %q", key)
	return info
}

// stateRecorder collects state notifications.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	errs   []error
}

func (r *stateRecorder) handle(_ string, s State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	r.errs = append(r.errs, err)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) last() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return StateIdle, nil
	}
	return r.states[len(r.states)-1], r.errs[len(r.errs)-1]
}

// updates counts delivered events.
type updates struct {
	mu     sync.Mutex
	events []transport.Event
}

func (u *updates) handle(ev transport.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, ev)
}

func (u *updates) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.events)
}

func (u *updates) types() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var types []string
	for _, ev := range u.events {
		types = append(types, ev.Type)
	}
	return types
}

// eventRecorder is a log.Logger that keeps every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *eventRecorder) Log(event log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func noop(transport.Event) {}

package subscription

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/livemux/pkg/transport"
	"github.com/sitetrack/livemux/pkg/transport/transporttest"
)

// gatedTransport holds Open and Release calls until their gates close.
// A nil gate lets calls through.
type gatedTransport struct {
	*transporttest.Fake

	openGate    chan struct{}
	releaseGate chan struct{}

	opening   chan struct{}
	releasing chan struct{}
}

func newGatedTransport(gateOpen, gateRelease bool) *gatedTransport {
	g := &gatedTransport{
		Fake:      transporttest.NewFake(),
		opening:   make(chan struct{}, 1),
		releasing: make(chan struct{}, 1),
	}
	if gateOpen {
		g.openGate = make(chan struct{})
	}
	if gateRelease {
		g.releaseGate = make(chan struct{})
	}
	return g
}

func (g *gatedTransport) Open(name, topic string) (transport.Channel, error) {
	if g.openGate != nil {
		select {
		case g.opening <- struct{}{}:
		default:
		}
		<-g.openGate
	}
	return g.Fake.Open(name, topic)
}

func (g *gatedTransport) Release(ctx context.Context, ch transport.Channel) error {
	if g.releaseGate != nil {
		select {
		case g.releasing <- struct{}{}:
		default:
		}
		<-g.releaseGate
	}
	return g.Fake.Release(ctx, ch)
}

func waitSignal(t *testing.T, c <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-c:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestResubscribeFromCleanupHandlerKeepsOneChannel(t *testing.T) {
	h := newHarness(t)

	var live atomic.Int32
	var once sync.Once
	resubscribed := make(chan struct{})
	h.mgr.Subscribe("tasks", noop, WithMaxRetries(0), WithStateHandler(func(key string, s State, _ error) {
		if s != StateCleanup {
			return
		}
		once.Do(func() {
			h.mgr.Subscribe(key, noop)
			live.Store(int32(len(h.fake.Live(key))))
			close(resubscribed)
		})
	}))
	first := h.fake.Last("tasks")
	first.Report(transport.StatusChannelError, nil)

	h.clk.Advance(31 * time.Second)
	waitSignal(t, resubscribed, "resubscribe from CLEANUP")

	assert.EqualValues(t, 1, live.Load())
	assert.True(t, first.Released())
	assert.Equal(t, 2, h.fake.Opened())
	assert.Equal(t, StateConnecting, h.info(t, "tasks").State)
}

func TestOpenWaitsForInFlightRelease(t *testing.T) {
	clk := testclock.NewClock(epoch)
	tr := newGatedTransport(false, true)
	mgr, err := NewManager(tr, Config{Clock: clk})
	require.NoError(t, err)

	unsubscribe := mgr.Subscribe("projects", noop)
	first := tr.Last("projects")
	unsubscribe()

	clk.Advance(DefaultDebounceDelay)
	waitSignal(t, tr.releasing, "idle release")

	// The old channel is still live; the new record must not open yet.
	mgr.Subscribe("projects", noop)
	assert.Equal(t, 1, tr.Opened())
	assert.Equal(t, StateConnecting, mgr.InfoAll()["projects"].State)
	assert.False(t, first.Released())

	close(tr.releaseGate)
	require.Eventually(t, func() bool {
		last := tr.Last("projects")
		return tr.Opened() == 2 && last.Connected()
	}, waitFor, tick)
	assert.True(t, first.Released())
	assert.Len(t, tr.Live("projects"), 1)
}

func TestReclaimDuringOpenReleasesOrphanFirst(t *testing.T) {
	clk := testclock.NewClock(epoch)
	tr := newGatedTransport(true, false)
	mgr, err := NewManager(tr, Config{Clock: clk})
	require.NoError(t, err)

	go mgr.Subscribe("equipment", noop)
	waitSignal(t, tr.opening, "first open")

	require.NoError(t, mgr.Cleanup(context.Background()))
	assert.Empty(t, mgr.InfoAll())

	// Deferred behind the orphaned open.
	mgr.Subscribe("equipment", noop)
	assert.Equal(t, 0, tr.Opened())

	close(tr.openGate)
	require.Eventually(t, func() bool {
		last := tr.Last("equipment")
		return tr.Opened() == 2 && last.Connected()
	}, waitFor, tick)

	assert.Equal(t, 1, tr.Releases())
	assert.Len(t, tr.Live("equipment"), 1)
	assert.Equal(t, 1, mgr.Stats().TotalChannels)
}

package ws_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitetrack/livemux/pkg/connection"
	"github.com/sitetrack/livemux/pkg/hub"
	"github.com/sitetrack/livemux/pkg/transport"
	"github.com/sitetrack/livemux/pkg/transport/ws"
	"github.com/sitetrack/livemux/pkg/wire"
)

type statusLog struct {
	mu      sync.Mutex
	entries []statusEntry
}

type statusEntry struct {
	status transport.Status
	err    error
}

func (l *statusLog) record(s transport.Status, err error) {
	l.mu.Lock()
	l.entries = append(l.entries, statusEntry{s, err})
	l.mu.Unlock()
}

func (l *statusLog) last() (statusEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return statusEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *statusLog) waitFor(t *testing.T, want transport.Status) statusEntry {
	t.Helper()
	var got statusEntry
	require.Eventually(t, func() bool {
		e, ok := l.last()
		got = e
		return ok && e.status == want
	}, 3*time.Second, 5*time.Millisecond, "waiting for %s", want)
	return got
}

func startHub(t *testing.T, mutate ...func(*hub.Config)) (*hub.Server, string) {
	t.Helper()
	cfg := hub.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := hub.New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
}

func newTransport(t *testing.T, url string, mutate ...func(*ws.Config)) *ws.Transport {
	t.Helper()
	cfg := ws.Config{URL: url}
	for _, m := range mutate {
		m(&cfg)
	}
	tr, err := ws.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNewRequiresURL(t *testing.T) {
	_, err := ws.New(ws.Config{})
	assert.ErrorIs(t, err, ws.ErrMissingURL)
}

func TestOpen(t *testing.T) {
	_, url := startHub(t)
	tr := newTransport(t, url)

	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders:anon:1", ch.Name())
	assert.Equal(t, "orders", ch.Topic())
	assert.False(t, tr.Connected(), "open must not dial")

	_, err = tr.Open("orders:anon:1", "orders")
	assert.ErrorIs(t, err, ws.ErrDuplicateName)

	_, err = tr.Open("", "orders")
	assert.Error(t, err)

	require.NoError(t, tr.Release(context.Background(), ch))
	_, err = tr.Open("orders:anon:1", "orders")
	assert.NoError(t, err, "released names are reusable")
}

func TestConnectAndReceive(t *testing.T) {
	s, url := startHub(t)
	clk := testclock.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := newTransport(t, url, func(c *ws.Config) { c.Clock = clk })

	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)

	var mu sync.Mutex
	var all, updates []transport.Event
	ch.OnEvent(transport.AllEvents, func(ev transport.Event) {
		mu.Lock()
		all = append(all, ev)
		mu.Unlock()
	}).OnEvent(transport.EventFilter{Type: "UPDATE"}, func(ev transport.Event) {
		mu.Lock()
		updates = append(updates, ev)
		mu.Unlock()
	})

	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)
	assert.True(t, tr.Connected())

	require.NoError(t, s.Publish("orders", "INSERT", []byte("1")))
	require.NoError(t, s.Publish("orders", "UPDATE", []byte("2")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(all) == 2 && len(updates) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "INSERT", all[0].Type)
	assert.Equal(t, "orders", all[0].Topic)
	assert.Equal(t, []byte("2"), updates[0].Payload)
	assert.Equal(t, clk.Now(), updates[0].ReceivedAt)
}

func TestChannelsShareOneSocket(t *testing.T) {
	s, url := startHub(t)
	tr := newTransport(t, url)

	var la, lb statusLog
	a, err := tr.Open("a:anon:1", "a")
	require.NoError(t, err)
	b, err := tr.Open("b:anon:1", "b")
	require.NoError(t, err)
	a.Connect(la.record)
	b.Connect(lb.record)
	la.waitFor(t, transport.StatusSubscribed)
	lb.waitFor(t, transport.StatusSubscribed)

	st := s.Stats()
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 2, st.Joins)
}

func TestJoinRejected(t *testing.T) {
	_, url := startHub(t, func(c *hub.Config) { c.TopicPrefixes = []string{"public:"} })
	tr := newTransport(t, url)

	ch, err := tr.Open("secret:anon:1", "secret")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)

	e := log.waitFor(t, transport.StatusChannelError)
	var remote *wire.RemoteError
	require.True(t, errors.As(e.err, &remote))
	assert.Equal(t, wire.CodeUnauthorized, remote.Code)
}

func TestTopicClosedByHub(t *testing.T) {
	s, url := startHub(t)
	tr := newTransport(t, url)

	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)

	s.CloseTopic("orders", "deleted")
	e := log.waitFor(t, transport.StatusClosed)
	assert.ErrorContains(t, e.err, "deleted")
}

func TestJoinTimeout(t *testing.T) {
	// Accepts the socket but never answers a join.
	upgrader := websocket.Upgrader{}
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(silent.Close)

	clk := testclock.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := newTransport(t, "ws"+strings.TrimPrefix(silent.URL, "http"), func(c *ws.Config) {
		c.Clock = clk
		c.JoinTimeout = 2 * time.Second
		c.PingInterval = time.Hour
	})

	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)

	// Ping loop and join timer.
	require.NoError(t, clk.WaitAdvance(2*time.Second, 2*time.Second, 2))
	log.waitFor(t, transport.StatusTimedOut)
}

func TestSocketLossClosesChannels(t *testing.T) {
	s, url := startHub(t)
	tr := newTransport(t, url)
	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)

	assert.Equal(t, 1, s.Disconnect(tr.ClientID()))
	log.waitFor(t, transport.StatusClosed)
	assert.Eventually(t, func() bool { return !tr.Connected() }, time.Second, 5*time.Millisecond)

	// A fresh channel redials.
	ch2, err := tr.Open("orders:anon:2", "orders")
	require.NoError(t, err)
	var log2 statusLog
	ch2.Connect(log2.record)
	log2.waitFor(t, transport.StatusSubscribed)
}

func TestReleaseSendsLeave(t *testing.T) {
	s, url := startHub(t)
	tr := newTransport(t, url)

	ch, err := tr.Open("orders:anon:1", "orders")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)
	require.Equal(t, 1, s.Stats().Joins)

	require.NoError(t, tr.Release(context.Background(), ch))
	assert.Eventually(t, func() bool { return s.Stats().Joins == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.NoError(t, tr.Release(context.Background(), ch), "release is idempotent")

	other := newTransport(t, url)
	foreign, err := other.Open("x:anon:1", "x")
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Release(context.Background(), foreign), ws.ErrForeign)
}

func TestPublishThroughTransport(t *testing.T) {
	_, url := startHub(t)
	listener := newTransport(t, url)
	publisher := newTransport(t, url)

	ch, err := listener.Open("chat:anon:1", "chat")
	require.NoError(t, err)
	got := make(chan transport.Event, 1)
	ch.OnEvent(transport.AllEvents, func(ev transport.Event) { got <- ev })
	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)

	require.NoError(t, publisher.Publish(context.Background(), "chat", "INSERT", []byte("hello")))

	select {
	case ev := <-got:
		assert.Equal(t, "INSERT", ev.Type)
		assert.Equal(t, []byte("hello"), ev.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDialFailureBacksOff(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	clk := testclock.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := newTransport(t, url, func(c *ws.Config) {
		c.Clock = clk
		c.DialBackoff = connection.BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}
	})

	first, err := tr.Open("a:anon:1", "a")
	require.NoError(t, err)
	var l1 statusLog
	first.Connect(l1.record)
	e := l1.waitFor(t, transport.StatusChannelError)
	assert.ErrorContains(t, e.err, "dial")

	second, err := tr.Open("a:anon:2", "a")
	require.NoError(t, err)
	var l2 statusLog
	second.Connect(l2.record)
	e = l2.waitFor(t, transport.StatusChannelError)
	assert.ErrorIs(t, e.err, ws.ErrDialBackoff)
}

func TestUnauthorizedDial(t *testing.T) {
	hash, err := hub.HashToken("good", bcrypt.MinCost)
	require.NoError(t, err)
	_, url := startHub(t, func(c *hub.Config) { c.TokenHashes = []string{hash} })

	bad := newTransport(t, url, func(c *ws.Config) { c.Token = "bad" })
	ch, err := bad.Open("a:anon:1", "a")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)
	e := log.waitFor(t, transport.StatusChannelError)
	assert.ErrorContains(t, e.err, "401")

	good := newTransport(t, url, func(c *ws.Config) { c.Token = "good" })
	ch, err = good.Open("a:anon:1", "a")
	require.NoError(t, err)
	var ok statusLog
	ch.Connect(ok.record)
	ok.waitFor(t, transport.StatusSubscribed)
}

func TestCloseRefusesChannels(t *testing.T) {
	_, url := startHub(t)
	tr := newTransport(t, url)

	ch, err := tr.Open("a:anon:1", "a")
	require.NoError(t, err)
	var log statusLog
	ch.Connect(log.record)
	log.waitFor(t, transport.StatusSubscribed)

	require.NoError(t, tr.Close())
	log.waitFor(t, transport.StatusClosed)

	_, err = tr.Open("b:anon:1", "b")
	assert.ErrorIs(t, err, ws.ErrClosed)
	assert.ErrorIs(t, tr.Publish(context.Background(), "a", "UPDATE", nil), ws.ErrClosed)
	assert.NoError(t, tr.Close())
}

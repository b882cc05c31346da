package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/sitetrack/livemux/pkg/connection"
	"github.com/sitetrack/livemux/pkg/transport"
	"github.com/sitetrack/livemux/pkg/wire"
)

// Transport errors.
var (
	ErrClosed        = errors.New("ws: transport closed")
	ErrNotConnected  = errors.New("ws: not connected")
	ErrDialBackoff   = errors.New("ws: waiting before redial")
	ErrDuplicateName = errors.New("ws: channel name in use")
	ErrForeign       = errors.New("ws: channel belongs to another transport")
)

// Transport is a transport.Transport backed by one websocket.
type Transport struct {
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	clientID string

	mu       sync.Mutex
	sock     *socket
	dialing  chan struct{}
	backoff  *connection.Backoff
	nextDial time.Time
	lastErr  error
	closed   bool

	nextRef  uint32
	channels map[uint32]*Channel
	names    map[string]*Channel
}

// New creates a websocket transport. No connection is made until the
// first channel connects.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.CAFile != "" && cfg.TLS == nil {
		tlsConfig, err := loadCAFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsConfig
	}
	cfg = cfg.withDefaults()

	return &Transport{
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		clientID: uuid.NewString(),
		backoff:  connection.NewBackoffWithConfig(cfg.DialBackoff),
		channels: make(map[uint32]*Channel),
		names:    make(map[string]*Channel),
	}, nil
}

// ClientID returns the identifier sent to the hub.
func (t *Transport) ClientID() string {
	return t.clientID
}

// Connected reports whether the socket is currently up.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock != nil
}

// Open implements transport.Transport. It does not touch the network.
func (t *Transport) Open(name, topic string) (transport.Channel, error) {
	if name == "" || topic == "" {
		return nil, fmt.Errorf("ws: name and topic are required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, exists := t.names[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	t.nextRef++
	ch := &Channel{transport: t, ref: t.nextRef, name: name, topic: topic}
	t.channels[ch.ref] = ch
	t.names[name] = ch
	return ch, nil
}

// Release implements transport.Transport. A joined channel sends a leave
// frame; the write is bounded by ctx.
func (t *Transport) Release(ctx context.Context, ch transport.Channel) error {
	c, ok := ch.(*Channel)
	if !ok || c.transport != t {
		return ErrForeign
	}

	t.mu.Lock()
	if t.channels[c.ref] == c {
		delete(t.channels, c.ref)
		delete(t.names, c.name)
	}
	sock := t.sock
	t.mu.Unlock()

	wasJoined, released := c.release()
	if !released {
		return nil
	}
	if !wasJoined || sock == nil {
		return nil
	}

	deadline := t.writeDeadline()
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := sock.send(wire.Leave(c.ref, c.topic), deadline); err != nil {
		// The hub drops joins of a lost socket on its own.
		t.debugLog("leave not sent", "channel", c.name, "error", err)
	}
	return nil
}

// Publish sends an update for topic to the hub, dialling if needed.
func (t *Transport) Publish(ctx context.Context, topic, eventType string, payload []byte) error {
	sock, err := t.ensureSocket(ctx)
	if err != nil {
		return err
	}
	return sock.send(wire.Publish(topic, eventType, payload), t.writeDeadline())
}

// Close closes the socket and refuses further channels. Joined channels
// receive CLOSED.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sock := t.sock
	t.mu.Unlock()

	if sock != nil {
		sock.close(ErrClosed)
	}
	return nil
}

// connect dials if needed and sends a join for c.
func (t *Transport) connect(c *Channel) {
	sock, err := t.ensureSocket(context.Background())
	if err != nil {
		c.report(transport.StatusChannelError, err)
		return
	}
	if !c.beginJoin(sock) {
		return
	}

	ref := c.ref
	timer := t.clock.AfterFunc(t.cfg.JoinTimeout, func() {
		if c.joinTimedOut() {
			t.debugLog("join timed out", "channel", c.name, "ref", ref)
			_ = sock.send(wire.Leave(ref, c.topic), t.writeDeadline())
			c.report(transport.StatusTimedOut, fmt.Errorf("no ack within %s", t.cfg.JoinTimeout))
		}
	})
	c.setJoinTimer(timer)

	if err := sock.send(wire.Join(ref, c.topic), t.writeDeadline()); err != nil {
		if c.joinFailed() {
			c.report(transport.StatusChannelError, err)
		}
	}
}

// ensureSocket returns the live socket, dialling one if necessary.
// Concurrent callers share a single dial.
func (t *Transport) ensureSocket(ctx context.Context) (*socket, error) {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, ErrClosed
		}
		if t.sock != nil {
			sock := t.sock
			t.mu.Unlock()
			return sock, nil
		}
		if wait := t.dialing; wait != nil {
			t.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if now := t.clock.Now(); now.Before(t.nextDial) {
			err := fmt.Errorf("%w for %s: %v", ErrDialBackoff, t.nextDial.Sub(now), t.lastErr)
			t.mu.Unlock()
			return nil, err
		}
		done := make(chan struct{})
		t.dialing = done
		t.mu.Unlock()

		sock, err := t.dial(ctx)

		t.mu.Lock()
		t.dialing = nil
		close(done)
		if err != nil {
			t.lastErr = err
			t.nextDial = t.clock.Now().Add(t.backoff.Next())
			attempts := t.backoff.Attempts()
			t.mu.Unlock()
			t.warnLog("dial failed", "url", t.cfg.URL, "attempt", attempts, "error", err)
			return nil, err
		}
		if t.closed {
			t.mu.Unlock()
			sock.close(ErrClosed)
			return nil, ErrClosed
		}
		t.backoff.Reset()
		t.nextDial = time.Time{}
		t.lastErr = nil
		t.sock = sock
		t.mu.Unlock()

		sock.start()
		t.debugLog("connected", "url", t.cfg.URL, "client", t.clientID)
		return sock, nil
	}
}

func (t *Transport) dial(ctx context.Context) (*socket, error) {
	header := http.Header{}
	header.Set(wire.ClientIDHeader, t.clientID)
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.JoinTimeout)
	defer cancel()

	conn, resp, err := t.cfg.Dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", t.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}
	conn.SetReadLimit(wire.MaxFrameSize)
	return newSocket(t, conn), nil
}

// handleFrame routes one inbound frame. Runs on the read goroutine.
func (t *Transport) handleFrame(sock *socket, f *wire.Frame) {
	switch f.Type {
	case wire.FramePing:
		_ = sock.send(wire.Pong(), t.writeDeadline())
		return
	case wire.FramePong:
		return
	}

	t.mu.Lock()
	c := t.channels[f.Ref]
	t.mu.Unlock()

	if c == nil {
		if f.Type == wire.FrameError {
			t.warnLog("hub error", "code", f.Code, "reason", f.Reason)
		}
		return
	}

	switch f.Type {
	case wire.FrameAck:
		if c.joinAcked() {
			c.report(transport.StatusSubscribed, nil)
		}
	case wire.FrameError:
		if c.joinFailed() {
			status := transport.StatusChannelError
			if f.Code == wire.CodeClosed {
				status = transport.StatusClosed
			}
			c.report(status, f.Error())
		}
	case wire.FrameEvent:
		c.emit(transport.Event{
			Topic:      f.Topic,
			Type:       f.Event,
			Payload:    f.Payload,
			ReceivedAt: t.clock.Now(),
		})
	}
}

// socketLost drops sock and tells every channel joined on it.
func (t *Transport) socketLost(sock *socket, cause error) {
	t.mu.Lock()
	if t.sock == sock {
		t.sock = nil
	}
	var affected []*Channel
	for _, c := range t.channels {
		if c.onSocket(sock) {
			affected = append(affected, c)
		}
	}
	t.mu.Unlock()

	t.debugLog("socket lost", "channels", len(affected), "error", cause)
	for _, c := range affected {
		if c.detachSocket(sock) {
			c.report(transport.StatusClosed, cause)
		}
	}
}

func (t *Transport) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *Transport) warnLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}

// Compile-time interface satisfaction check.
var _ transport.Transport = (*Transport)(nil)

// writeDeadline is wall-clock based since it is applied to the net.Conn.
func (t *Transport) writeDeadline() time.Time {
	return time.Now().Add(t.cfg.WriteTimeout)
}

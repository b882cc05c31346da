package hub

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitetrack/livemux/pkg/wire"
)

type join struct {
	topic       string
	unsubscribe func()
}

// session is one websocket client. The read loop runs on the HTTP handler
// goroutine; a writer goroutine owns all data writes.
type session struct {
	server   *Server
	conn     *websocket.Conn
	id       string
	clientID string
	remote   string
	since    time.Time

	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
	controlMu sync.Mutex

	mu    sync.Mutex
	joins map[uint32]*join
}

func newSession(s *Server, conn *websocket.Conn, id, clientID, remote string) *session {
	return &session{
		server:   s,
		conn:     conn,
		id:       id,
		clientID: clientID,
		remote:   remote,
		since:    s.clock.Now(),
		out:      make(chan []byte, s.config.SendQueue),
		done:     make(chan struct{}),
		joins:    make(map[uint32]*join),
	}
}

// run serves the session until the socket closes.
func (c *session) run() {
	defer c.leaveAll()
	defer c.close(websocket.CloseNormalClosure, "")

	// Ping/pong keeps the read deadline moving so a vanished client is
	// noticed.
	pongWait := c.server.config.PongWait
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writeLoop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.debugLog("session receive error", "session", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.BinaryMessage {
			c.enqueue(wire.Errorf(0, "", wire.CodeInvalidFrame, "binary frames only"))
			continue
		}
		f, err := wire.Decode(data)
		if err != nil {
			c.enqueue(wire.Errorf(0, "", wire.CodeInvalidFrame, "%v", err))
			continue
		}
		c.handle(f)
	}
}

func (c *session) handle(f *wire.Frame) {
	switch f.Type {
	case wire.FrameJoin:
		c.join(f.Ref, f.Topic)
	case wire.FrameLeave:
		c.leave(f.Ref)
	case wire.FramePublish:
		if err := c.server.Publish(f.Topic, f.Event, f.Payload); err != nil {
			code := wire.CodeChannelError
			if errors.Is(err, ErrTopicNotAllowed) {
				code = wire.CodeUnauthorized
			}
			c.enqueue(wire.Errorf(0, f.Topic, code, "%v", err))
		}
	case wire.FramePing:
		c.enqueue(wire.Pong())
	case wire.FramePong:
	default:
		c.enqueue(wire.Errorf(f.Ref, f.Topic, wire.CodeInvalidFrame, "unexpected %s frame", f.Type))
	}
}

func (c *session) join(ref uint32, topic string) {
	if !c.server.config.allows(topic) {
		c.enqueue(wire.Errorf(ref, topic, wire.CodeUnauthorized, "topic %q not allowed", topic))
		return
	}

	c.mu.Lock()
	if _, exists := c.joins[ref]; exists {
		c.mu.Unlock()
		c.enqueue(wire.Errorf(ref, topic, wire.CodeDuplicateRef, "ref %d already joined", ref))
		return
	}
	if len(c.joins) >= c.server.config.MaxJoins {
		c.mu.Unlock()
		c.enqueue(wire.Errorf(ref, topic, wire.CodeChannelError, "join limit %d reached", c.server.config.MaxJoins))
		return
	}
	j := &join{topic: topic}
	c.joins[ref] = j

	// The ack is queued before the subscription exists so it precedes
	// every event for this ref.
	c.enqueue(wire.Ack(ref, topic))
	j.unsubscribe = c.server.hub.Subscribe(topicPrefix+topic, func(_ string, data interface{}) {
		u, ok := data.(update)
		if !ok {
			return
		}
		c.deliver(ref, u)
	})
	c.mu.Unlock()

	c.server.debugLog("join", "session", c.id, "ref", ref, "topic", topic)
}

func (c *session) deliver(ref uint32, u update) {
	c.mu.Lock()
	_, joined := c.joins[ref]
	c.mu.Unlock()
	if !joined {
		return
	}
	if c.enqueue(wire.Event(ref, u.topic, u.event, u.payload)) {
		c.server.delivered.Add(1)
	}
}

func (c *session) leave(ref uint32) {
	c.mu.Lock()
	j, ok := c.joins[ref]
	delete(c.joins, ref)
	c.mu.Unlock()

	if ok && j.unsubscribe != nil {
		j.unsubscribe()
		c.server.debugLog("leave", "session", c.id, "ref", ref, "topic", j.topic)
	}
}

func (c *session) leaveAll() {
	c.mu.Lock()
	joins := c.joins
	c.joins = make(map[uint32]*join)
	c.mu.Unlock()

	for _, j := range joins {
		if j.unsubscribe != nil {
			j.unsubscribe()
		}
	}
}

// closeTopic ends every join on topic with a CLOSED error frame.
func (c *session) closeTopic(topic, reason string) int {
	c.mu.Lock()
	var refs []uint32
	for ref, j := range c.joins {
		if j.topic == topic {
			refs = append(refs, ref)
		}
	}
	c.mu.Unlock()

	for _, ref := range refs {
		c.leave(ref)
		c.enqueue(wire.Errorf(ref, topic, wire.CodeClosed, "%s", reason))
	}
	return len(refs)
}

// enqueue queues a frame for the writer. A full queue disconnects the
// session.
func (c *session) enqueue(f *wire.Frame) bool {
	data, err := wire.Encode(f)
	if err != nil {
		c.server.warnLog("dropping unencodable frame", "session", c.id, "type", f.Type, "error", err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		c.server.dropped.Add(1)
		c.server.warnLog("send queue full, disconnecting", "session", c.id)
		go c.close(websocket.ClosePolicyViolation, "send queue full")
		return false
	}
}

func (c *session) writeLoop() {
	cfg := c.server.config
	ping := c.server.clock.NewTimer(cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			c.controlMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			err := c.conn.WriteMessage(websocket.BinaryMessage, data)
			c.controlMu.Unlock()
			if err != nil {
				c.server.debugLog("session write failed", "session", c.id, "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ping.Chan():
			ping.Reset(cfg.PingInterval)
			c.controlMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(cfg.WriteTimeout))
			c.controlMu.Unlock()
			if err != nil {
				// Expected when the other end goes away.
				c.server.debugLog("failed to write ping", "session", c.id, "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// close sends a close frame when possible and closes the socket.
func (c *session) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if code != websocket.CloseAbnormalClosure {
			c.controlMu.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(c.server.config.WriteTimeout))
			c.controlMu.Unlock()
		}
		_ = c.conn.Close()
	})
}

func (c *session) joinCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.joins)
}

func (c *session) info() SessionInfo {
	c.mu.Lock()
	topics := make([]string, 0, len(c.joins))
	for _, j := range c.joins {
		topics = append(topics, j.topic)
	}
	c.mu.Unlock()
	sort.Strings(topics)

	return SessionInfo{
		ID:          c.id,
		ClientID:    c.clientID,
		RemoteAddr:  c.remote,
		Topics:      topics,
		ConnectedAt: c.since,
	}
}

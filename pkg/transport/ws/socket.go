package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitetrack/livemux/pkg/wire"
)

// socket owns one websocket connection. Reads happen on a single
// goroutine; writes are serialized by writeMu.
type socket struct {
	t    *Transport
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func newSocket(t *Transport, conn *websocket.Conn) *socket {
	return &socket{
		t:    t,
		conn: conn,
		done: make(chan struct{}),
	}
}

// start launches the read and ping loops.
func (s *socket) start() {
	pongWait := s.t.cfg.PongWait
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop()
	go s.pingLoop()
}

func (s *socket) readLoop() {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.close(err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.t.cfg.PongWait))
		if kind != websocket.BinaryMessage {
			continue
		}
		f, err := wire.Decode(data)
		if err != nil {
			s.t.debugLog("dropping bad frame", "error", err)
			continue
		}
		s.t.handleFrame(s, f)
	}
}

func (s *socket) pingLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.t.clock.After(s.t.cfg.PingInterval):
			deadline := time.Now().Add(s.t.cfg.WriteTimeout)
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, deadline)
			s.writeMu.Unlock()
			if err != nil {
				s.close(err)
				return
			}
		}
	}
}

// send writes one frame before deadline.
func (s *socket) send(f *wire.Frame, deadline time.Time) error {
	data, err := wire.Encode(f)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		go s.close(err)
		return err
	}
	return nil
}

// close tears the socket down once and notifies the transport.
func (s *socket) close(cause error) {
	s.closeOnce.Do(func() {
		close(s.done)

		if errors.Is(cause, ErrClosed) {
			s.writeMu.Lock()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			s.writeMu.Unlock()
		}
		_ = s.conn.Close()
		s.t.socketLost(s, cause)
	})
}

package ws

import (
	"sync"

	"github.com/juju/clock"

	"github.com/sitetrack/livemux/pkg/transport"
)

type joinState uint8

const (
	joinIdle joinState = iota
	joinPending
	joinActive
	joinDone
)

type eventHandler struct {
	filter transport.EventFilter
	fn     func(transport.Event)
}

// Channel is a single topic join multiplexed over the transport socket.
type Channel struct {
	transport *Transport
	ref       uint32
	name      string
	topic     string

	mu       sync.Mutex
	handlers []eventHandler
	status   transport.StatusFunc
	state    joinState
	sock     *socket
	timer    clock.Timer
	released bool
}

// Name implements transport.Channel.
func (c *Channel) Name() string { return c.name }

// Topic implements transport.Channel.
func (c *Channel) Topic() string { return c.topic }

// Ref returns the join reference used on the wire.
func (c *Channel) Ref() uint32 { return c.ref }

// OnEvent implements transport.Channel.
func (c *Channel) OnEvent(filter transport.EventFilter, handler func(transport.Event)) transport.Channel {
	c.mu.Lock()
	c.handlers = append(c.handlers, eventHandler{filter: filter, fn: handler})
	c.mu.Unlock()
	return c
}

// Connect implements transport.Channel. The join runs in the background.
func (c *Channel) Connect(status transport.StatusFunc) {
	c.mu.Lock()
	if c.released || c.state != joinIdle {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	go c.transport.connect(c)
}

// beginJoin binds the channel to sock before the join frame is sent.
func (c *Channel) beginJoin(sock *socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.state != joinIdle {
		return false
	}
	c.state = joinPending
	c.sock = sock
	return true
}

func (c *Channel) setJoinTimer(t clock.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == joinPending {
		c.timer = t
		return
	}
	t.Stop()
}

// joinAcked moves a pending join to active.
func (c *Channel) joinAcked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.state != joinPending {
		return false
	}
	c.state = joinActive
	c.stopTimerLocked()
	return true
}

// joinFailed ends a pending or active join.
func (c *Channel) joinFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || (c.state != joinPending && c.state != joinActive) {
		return false
	}
	c.state = joinDone
	c.stopTimerLocked()
	return true
}

func (c *Channel) joinTimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.state != joinPending {
		return false
	}
	c.state = joinDone
	c.timer = nil
	return true
}

func (c *Channel) onSocket(sock *socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock == sock
}

// detachSocket ends the join if it is bound to sock.
func (c *Channel) detachSocket(sock *socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock != sock {
		return false
	}
	c.sock = nil
	if c.released || (c.state != joinPending && c.state != joinActive) {
		return false
	}
	c.state = joinDone
	c.stopTimerLocked()
	return true
}

// release marks the channel released. It reports whether a join was live
// and whether this call did the release.
func (c *Channel) release() (wasJoined, released bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return false, false
	}
	c.released = true
	wasJoined = c.state == joinPending || c.state == joinActive
	c.state = joinDone
	c.sock = nil
	c.stopTimerLocked()
	return wasJoined, true
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) report(status transport.Status, err error) {
	c.mu.Lock()
	fn := c.status
	c.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}

func (c *Channel) emit(ev transport.Event) {
	c.mu.Lock()
	if c.released || c.state != joinActive {
		c.mu.Unlock()
		return
	}
	handlers := make([]eventHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		if h.filter.Matches(ev) {
			h.fn(ev)
		}
	}
}

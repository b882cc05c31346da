// Package transporttest provides a scriptable in-memory Transport for tests.
//
// Unlike the memory transport, nothing here is asynchronous: status reports
// and events are delivered on the calling goroutine, so tests decide exactly
// when a channel connects, fails or receives an update.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/sitetrack/livemux/pkg/transport"
)

// ErrOpenFailed is returned by Open when a failure has been queued.
var ErrOpenFailed = errors.New("transporttest: open failed")

// Fake is a transport.Transport whose channels are driven by the test.
type Fake struct {
	mu sync.Mutex

	// AutoSubscribe makes Connect report SUBSCRIBED immediately.
	AutoSubscribe bool

	// ReleaseErr is returned from every Release call when set.
	ReleaseErr error

	channels []*Channel
	openErrs []error
	releases int
}

// NewFake returns an empty fake transport.
func NewFake() *Fake {
	return &Fake{}
}

// FailNextOpen queues an error for the next Open call.
func (f *Fake) FailNextOpen(err error) {
	if err == nil {
		err = ErrOpenFailed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErrs = append(f.openErrs, err)
}

// Open implements transport.Transport.
func (f *Fake) Open(name, topic string) (transport.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		return nil, err
	}

	ch := &Channel{fake: f, name: name, topic: topic}
	f.channels = append(f.channels, ch)
	return ch, nil
}

// Release implements transport.Transport.
func (f *Fake) Release(_ context.Context, ch transport.Channel) error {
	c, ok := ch.(*Channel)
	if !ok {
		return nil
	}

	f.mu.Lock()
	f.releases++
	releaseErr := f.ReleaseErr
	f.mu.Unlock()

	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
	return releaseErr
}

// Opened returns the number of channels opened so far.
func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

// Releases returns the number of Release calls.
func (f *Fake) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Live returns the channels for topic that have not been released.
func (f *Fake) Live(topic string) []*Channel {
	f.mu.Lock()
	defer f.mu.Unlock()

	var live []*Channel
	for _, ch := range f.channels {
		if ch.topic == topic && !ch.Released() {
			live = append(live, ch)
		}
	}
	return live
}

// Last returns the most recently opened channel for topic, or nil.
func (f *Fake) Last(topic string) *Channel {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.channels) - 1; i >= 0; i-- {
		if f.channels[i].topic == topic {
			return f.channels[i]
		}
	}
	return nil
}

type handlerEntry struct {
	filter  transport.EventFilter
	handler func(transport.Event)
}

// Channel is a fake channel. Tests drive it with Report and Emit.
type Channel struct {
	fake  *Fake
	name  string
	topic string

	mu        sync.Mutex
	handlers  []handlerEntry
	status    transport.StatusFunc
	connected bool
	released  bool
}

// Name implements transport.Channel.
func (c *Channel) Name() string { return c.name }

// Topic implements transport.Channel.
func (c *Channel) Topic() string { return c.topic }

// OnEvent implements transport.Channel.
func (c *Channel) OnEvent(filter transport.EventFilter, handler func(transport.Event)) transport.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handlerEntry{filter: filter, handler: handler})
	return c
}

// Connect implements transport.Channel.
func (c *Channel) Connect(status transport.StatusFunc) {
	c.mu.Lock()
	c.status = status
	c.connected = true
	c.mu.Unlock()

	c.fake.mu.Lock()
	auto := c.fake.AutoSubscribe
	c.fake.mu.Unlock()

	if auto {
		status(transport.StatusSubscribed, nil)
	}
}

// Connected reports whether Connect has been called.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Released reports whether the channel has been released.
func (c *Channel) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Report delivers a status to the connect callback, if any.
func (c *Channel) Report(status transport.Status, err error) {
	c.mu.Lock()
	fn := c.status
	c.mu.Unlock()

	if fn != nil {
		fn(status, err)
	}
}

// Emit delivers an event to every matching handler.
func (c *Channel) Emit(ev transport.Event) {
	if ev.Topic == "" {
		ev.Topic = c.topic
	}

	c.mu.Lock()
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		if h.filter.Matches(ev) {
			h.handler(ev)
		}
	}
}

// Compile-time interface satisfaction checks.
var (
	_ transport.Transport = (*Fake)(nil)
	_ transport.Channel   = (*Channel)(nil)
)

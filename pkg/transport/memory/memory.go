// Package memory provides an in-process transport.
//
// Channels subscribe to topics on a pubsub hub. Publish fans an event out to
// every connected channel for the topic; each channel receives events in
// publish order. FailNext and Drop inject failures for demos and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"

	"github.com/sitetrack/livemux/pkg/transport"
)

// Hub topic prefixes.
const (
	eventPrefix  = "livemux.event."
	statusPrefix = "livemux.status."
)

// Open errors.
var (
	ErrEmptyName     = errors.New("memory: channel name is required")
	ErrEmptyTopic    = errors.New("memory: topic is required")
	ErrDuplicateName = errors.New("memory: channel name in use")
	ErrForeign       = errors.New("memory: channel belongs to another transport")
)

// Config configures a Transport.
type Config struct {
	// Clock stamps received events. Nil uses the wall clock.
	Clock clock.Clock

	// Logger receives debug logs. Nil disables logging.
	Logger *slog.Logger
}

// statusReport is published on a channel's status topic.
type statusReport struct {
	status transport.Status
	err    error
}

// Transport is an in-process transport.Transport.
type Transport struct {
	hub    *pubsub.SimpleHub
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*Channel
	faults   map[string][]statusReport
}

// New creates an in-process transport with its own hub.
func New(cfg Config) *Transport {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Transport{
		hub:      pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{}),
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		channels: make(map[string]*Channel),
		faults:   make(map[string][]statusReport),
	}
}

// Open implements transport.Transport.
func (t *Transport) Open(name, topic string) (transport.Channel, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.channels[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	ch := &Channel{transport: t, name: name, topic: topic}
	t.channels[name] = ch
	t.debugLog("channel opened", "name", name, "topic", topic)
	return ch, nil
}

// Release implements transport.Transport.
func (t *Transport) Release(_ context.Context, ch transport.Channel) error {
	c, ok := ch.(*Channel)
	if !ok || c.transport != t {
		return ErrForeign
	}

	t.mu.Lock()
	if t.channels[c.name] == c {
		delete(t.channels, c.name)
	}
	t.mu.Unlock()

	if c.release() {
		t.debugLog("channel released", "name", c.name)
	}
	return nil
}

// Publish delivers ev to every connected channel on topic.
func (t *Transport) Publish(topic string, ev transport.Event) {
	ev.Topic = topic
	_ = t.hub.Publish(eventPrefix+topic, ev)
}

// FailNext makes the next Connect on topic report status instead of
// SUBSCRIBED. Calls queue up.
func (t *Transport) FailNext(topic string, status transport.Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults[topic] = append(t.faults[topic], statusReport{status: status, err: err})
}

// Drop reports status to every connected channel on topic, simulating a
// broken or closed connection. Returns the number of channels notified.
func (t *Transport) Drop(topic string, status transport.Status, err error) int {
	t.mu.Lock()
	var targets []*Channel
	for _, c := range t.channels {
		if c.topic == topic && c.isConnected() {
			targets = append(targets, c)
		}
	}
	t.mu.Unlock()

	for _, c := range targets {
		_ = t.hub.Publish(statusPrefix+c.name, statusReport{status: status, err: err})
	}
	return len(targets)
}

// Live returns the number of open channels on topic.
func (t *Transport) Live(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, c := range t.channels {
		if c.topic == topic {
			n++
		}
	}
	return n
}

// Topics returns the number of open channels per topic.
func (t *Transport) Topics() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	topics := make(map[string]int)
	for _, c := range t.channels {
		topics[c.topic]++
	}
	return topics
}

// nextStatus pops a queued fault for topic, or returns SUBSCRIBED.
func (t *Transport) nextStatus(topic string) statusReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	queued := t.faults[topic]
	if len(queued) == 0 {
		return statusReport{status: transport.StatusSubscribed}
	}
	t.faults[topic] = queued[1:]
	if len(t.faults[topic]) == 0 {
		delete(t.faults, topic)
	}
	return queued[0]
}

func (t *Transport) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

type handlerEntry struct {
	filter  transport.EventFilter
	handler func(transport.Event)
}

// Channel is a channel on a memory Transport.
type Channel struct {
	transport *Transport
	name      string
	topic     string

	mu        sync.Mutex
	handlers  []handlerEntry
	unsubs    []func()
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

// Connect implements transport.Channel. Connecting a released or already
// connected channel does nothing.
func (c *Channel) Connect(status transport.StatusFunc) {
	c.mu.Lock()
	if c.released || c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = true
	hub := c.transport.hub
	c.unsubs = append(c.unsubs,
		hub.Subscribe(eventPrefix+c.topic, c.onEvent),
		hub.Subscribe(statusPrefix+c.name, func(_ string, data interface{}) {
			report, ok := data.(statusReport)
			if !ok || c.isReleased() {
				return
			}
			status(report.status, report.err)
		}),
	)
	c.mu.Unlock()

	_ = hub.Publish(statusPrefix+c.name, c.transport.nextStatus(c.topic))
}

func (c *Channel) onEvent(_ string, data interface{}) {
	ev, ok := data.(transport.Event)
	if !ok {
		return
	}
	ev.ReceivedAt = c.transport.clock.Now()

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		if h.filter.Matches(ev) {
			h.handler(ev)
		}
	}
}

// release unsubscribes from the hub. Returns false if already released.
func (c *Channel) release() bool {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return false
	}
	c.released = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return true
}

func (c *Channel) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

func (c *Channel) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.released
}

// Compile-time interface satisfaction checks.
var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Channel   = (*Channel)(nil)
)

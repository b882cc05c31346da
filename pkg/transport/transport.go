package transport

import (
	"context"
	"strings"
	"time"
)

// Status is a connection status reported by a Channel.
type Status uint8

const (
	// StatusSubscribed indicates the channel is live and delivering events.
	StatusSubscribed Status = iota + 1

	// StatusChannelError indicates the channel failed to connect or broke.
	StatusChannelError

	// StatusTimedOut indicates the connect attempt did not complete in time.
	StatusTimedOut

	// StatusClosed indicates the channel was closed.
	StatusClosed
)

// String returns the status name as reported on the wire.
func (s Status) String() string {
	switch s {
	case StatusSubscribed:
		return "SUBSCRIBED"
	case StatusChannelError:
		return "CHANNEL_ERROR"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus converts a wire status name back to a Status.
// Unknown names map to StatusChannelError.
func ParseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "SUBSCRIBED":
		return StatusSubscribed
	case "TIMED_OUT":
		return StatusTimedOut
	case "CLOSED":
		return StatusClosed
	default:
		return StatusChannelError
	}
}

// Event is a raw update delivered on a channel.
type Event struct {
	// Topic is the resource the event belongs to.
	Topic string

	// Type classifies the change (e.g. INSERT, UPDATE, DELETE).
	Type string

	// Payload is the opaque update body.
	Payload []byte

	// ReceivedAt is when the transport received the event.
	ReceivedAt time.Time
}

// EventFilter selects which events a handler receives.
// The zero value matches every event.
type EventFilter struct {
	// Type matches Event.Type exactly. Empty or "*" matches all types.
	Type string
}

// AllEvents is the filter matching every event.
var AllEvents = EventFilter{}

// Matches reports whether the event passes the filter.
func (f EventFilter) Matches(ev Event) bool {
	return f.Type == "" || f.Type == "*" || strings.EqualFold(f.Type, ev.Type)
}

// StatusFunc receives connection status changes. It may be called zero or
// more times, from any goroutine. err carries detail for failure statuses.
type StatusFunc func(status Status, err error)

// Channel is an addressable live-update channel handed out by a Transport.
type Channel interface {
	// Name returns the name the channel was opened with.
	Name() string

	// Topic returns the resource topic the channel listens on.
	Topic() string

	// OnEvent registers a raw event handler and returns the same channel.
	// Handlers must be registered before Connect.
	OnEvent(filter EventFilter, handler func(Event)) Channel

	// Connect begins connecting. status is invoked asynchronously.
	Connect(status StatusFunc)
}

// Transport allocates and releases channels.
type Transport interface {
	// Open allocates a channel for topic under the given name.
	Open(name, topic string) (Channel, error)

	// Release tears down a channel. Releasing an already released
	// channel is a no-op.
	Release(ctx context.Context, ch Channel) error
}

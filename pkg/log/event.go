package log

import (
	"time"
)

// Event represents a multiplexer event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ResourceKey identifies the multiplexed resource.
	ResourceKey string `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// ChannelName is the transport channel name (if one is open).
	ChannelName string `cbor:"5,keyasint,omitempty"`

	// OwnerID is the principal that created the channel.
	OwnerID string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Retry       *RetryEvent       `cbor:"11,keyasint,omitempty"`
	Callback    *CallbackEvent    `cbor:"12,keyasint,omitempty"`
	Reclaim     *ReclaimEvent     `cbor:"13,keyasint,omitempty"`
	Delivery    *DeliveryEvent    `cbor:"14,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"15,keyasint,omitempty"`
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the live-update channel provider.
	LayerTransport Layer = 0
	// LayerMultiplexer is the channel registry and state machine.
	LayerMultiplexer Layer = 1
	// LayerSubscriber is a caller-supplied handler.
	LayerSubscriber Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerMultiplexer:
		return "MULTIPLEXER"
	case LayerSubscriber:
		return "SUBSCRIBER"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer converts a layer name to a Layer.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerTransport, LayerMultiplexer, LayerSubscriber} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a channel state change.
	CategoryState Category = 0
	// CategoryRetry indicates a scheduled retry.
	CategoryRetry Category = 1
	// CategoryCallback indicates a subscriber handler failure.
	CategoryCallback Category = 2
	// CategoryReclaim indicates a channel was reclaimed.
	CategoryReclaim Category = 3
	// CategoryDelivery indicates an update was fanned out.
	CategoryDelivery Category = 4
	// CategoryError indicates an error event.
	CategoryError Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryRetry:
		return "RETRY"
	case CategoryCallback:
		return "CALLBACK"
	case CategoryReclaim:
		return "RECLAIM"
	case CategoryDelivery:
		return "DELIVERY"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory converts a category name to a Category.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryState; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures a channel state transition.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`

	// RetryCount at the time of the transition.
	RetryCount int `cbor:"4,keyasint,omitempty"`
}

// RetryEvent captures a scheduled backoff retry.
type RetryEvent struct {
	// Attempt is the 1-based retry number.
	Attempt int `cbor:"1,keyasint"`

	// MaxRetries is the retry budget for the channel.
	MaxRetries int `cbor:"2,keyasint"`

	// Delay before the retry runs. Stored as nanoseconds.
	Delay time.Duration `cbor:"3,keyasint"`
}

// CallbackEvent captures a subscriber handler failure.
type CallbackEvent struct {
	// Token identifies the subscriber.
	Token string `cbor:"1,keyasint"`

	// Message describes the failure.
	Message string `cbor:"2,keyasint"`
}

// ReclaimReason says why a channel was reclaimed.
type ReclaimReason uint8

const (
	// ReclaimIdle is a debounced reclamation after the last subscriber left.
	ReclaimIdle ReclaimReason = 0
	// ReclaimStaleError is a sweep of a channel stuck in ERROR.
	ReclaimStaleError ReclaimReason = 1
	// ReclaimStaleEmpty is a sweep of a channel left without subscribers.
	ReclaimStaleEmpty ReclaimReason = 2
	// ReclaimForced is an explicit global cleanup.
	ReclaimForced ReclaimReason = 3
)

// String returns the reclaim reason name.
func (r ReclaimReason) String() string {
	switch r {
	case ReclaimIdle:
		return "IDLE"
	case ReclaimStaleError:
		return "STALE_ERROR"
	case ReclaimStaleEmpty:
		return "STALE_EMPTY"
	case ReclaimForced:
		return "FORCED"
	default:
		return "UNKNOWN"
	}
}

// ReclaimEvent captures the reclamation of a channel.
type ReclaimEvent struct {
	// Reason for reclamation.
	Reason ReclaimReason `cbor:"1,keyasint"`

	// Age of the channel when reclaimed. Stored as nanoseconds.
	Age time.Duration `cbor:"2,keyasint"`

	// Subscribers still attached when reclaimed.
	Subscribers int `cbor:"3,keyasint,omitempty"`
}

// DeliveryEvent captures the fan-out of one update.
type DeliveryEvent struct {
	// EventType is the transport event type.
	EventType string `cbor:"1,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"2,keyasint"`

	// Delivered is the number of handlers that received the update.
	Delivered int `cbor:"3,keyasint"`

	// Failed is the number of handlers that panicked.
	Failed int `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

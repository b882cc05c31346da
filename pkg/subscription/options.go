package subscription

import (
	"github.com/google/uuid"

	"github.com/sitetrack/livemux/pkg/transport"
)

// Handler receives live updates for a resource key.
type Handler func(transport.Event)

// StateHandler is told about state changes of the record a subscriber is
// attached to. err is set for StateError.
type StateHandler func(key string, state State, err error)

// Unsubscribe detaches a subscriber. Calling it more than once is harmless.
type Unsubscribe func()

// Option configures a single Subscribe call.
type Option func(*subscriber)

// WithOwner sets the requesting principal. The owner of the subscriber that
// creates a record is used to name its transport channel.
func WithOwner(id string) Option {
	return func(s *subscriber) {
		s.owner = id
	}
}

// WithEventFilter restricts which events reach the handler.
func WithEventFilter(f transport.EventFilter) Option {
	return func(s *subscriber) {
		s.filter = f
	}
}

// WithStateHandler registers a callback for state changes.
func WithStateHandler(fn StateHandler) Option {
	return func(s *subscriber) {
		s.onState = fn
	}
}

// WithMaxRetries sets the retry limit. It applies when this subscriber
// creates the record; later subscribers share the existing limit.
func WithMaxRetries(n int) Option {
	return func(s *subscriber) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithToken identifies the logical subscriber. Subscribing again with the
// same token on the same key replaces the earlier registration instead of
// adding a second one. Without a token every call is a new subscriber.
func WithToken(token string) Option {
	return func(s *subscriber) {
		if token != "" {
			s.token = token
		}
	}
}

// subscriber is one registration on a record.
type subscriber struct {
	token      string
	owner      string
	handler    Handler
	filter     transport.EventFilter
	onState    StateHandler
	maxRetries int
}

func newSubscriber(handler Handler, defaultRetries int, opts []Option) *subscriber {
	s := &subscriber{
		token:      uuid.NewString(),
		handler:    handler,
		filter:     transport.AllEvents,
		maxRetries: defaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

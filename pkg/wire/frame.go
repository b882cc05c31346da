package wire

import (
	"errors"
	"fmt"
)

// MaxFrameSize is the largest encoded frame a peer accepts.
const MaxFrameSize = 1 << 20

// FrameType identifies a frame.
type FrameType uint8

const (
	FrameJoin FrameType = iota + 1
	FrameLeave
	FrameAck
	FrameError
	FrameEvent
	FramePublish
	FramePing
	FramePong
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameJoin:
		return "JOIN"
	case FrameLeave:
		return "LEAVE"
	case FrameAck:
		return "ACK"
	case FrameError:
		return "ERROR"
	case FrameEvent:
		return "EVENT"
	case FramePublish:
		return "PUBLISH"
	case FramePing:
		return "PING"
	case FramePong:
		return "PONG"
	default:
		return fmt.Sprintf("FrameType(%d)", t)
	}
}

// IsValid reports whether t is a known frame type.
func (t FrameType) IsValid() bool {
	return t >= FrameJoin && t <= FramePong
}

// ErrorCode classifies an error frame.
type ErrorCode uint8

const (
	// CodeChannelError is a generic channel failure.
	CodeChannelError ErrorCode = iota
	// CodeClosed means the hub closed the join.
	CodeClosed
	// CodeUnauthorized means the socket is not authenticated.
	CodeUnauthorized
	// CodeInvalidFrame means the peer sent an invalid frame.
	CodeInvalidFrame
	// CodeDuplicateRef means the ref is already joined on this socket.
	CodeDuplicateRef
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeChannelError:
		return "CHANNEL_ERROR"
	case CodeClosed:
		return "CLOSED"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeInvalidFrame:
		return "INVALID_FRAME"
	case CodeDuplicateRef:
		return "DUPLICATE_REF"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// ClientIDHeader carries the client identifier on the websocket upgrade.
const ClientIDHeader = "X-Livemux-Client"

// Frame validation errors.
var (
	ErrInvalidType  = errors.New("invalid frame type")
	ErrMissingRef   = errors.New("frame requires a ref")
	ErrMissingTopic = errors.New("frame requires a topic")
	ErrMissingEvent = errors.New("frame requires an event type")
)

// Frame is a single wire message.
type Frame struct {
	Type    FrameType `cbor:"1,keyasint"`
	Ref     uint32    `cbor:"2,keyasint,omitempty"`
	Topic   string    `cbor:"3,keyasint,omitempty"`
	Event   string    `cbor:"4,keyasint,omitempty"`
	Payload []byte    `cbor:"5,keyasint,omitempty"`
	Code    ErrorCode `cbor:"6,keyasint,omitempty"`
	Reason  string    `cbor:"7,keyasint,omitempty"`
}

// Validate checks that the fields required by the frame type are present.
func (f *Frame) Validate() error {
	if !f.Type.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidType, f.Type)
	}
	switch f.Type {
	case FrameJoin, FrameLeave, FrameAck:
		if f.Ref == 0 {
			return ErrMissingRef
		}
		if f.Topic == "" {
			return ErrMissingTopic
		}
	case FrameEvent:
		if f.Ref == 0 {
			return ErrMissingRef
		}
		if f.Topic == "" {
			return ErrMissingTopic
		}
		if f.Event == "" {
			return ErrMissingEvent
		}
	case FramePublish:
		if f.Topic == "" {
			return ErrMissingTopic
		}
		if f.Event == "" {
			return ErrMissingEvent
		}
	}
	return nil
}

// Error returns the error frame as a Go error, or nil for other frames.
func (f *Frame) Error() error {
	if f.Type != FrameError {
		return nil
	}
	return &RemoteError{Code: f.Code, Reason: f.Reason}
}

// RemoteError is an error frame received from a peer.
type RemoteError struct {
	Code   ErrorCode
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return "remote: " + e.Code.String()
	}
	return fmt.Sprintf("remote: %s: %s", e.Code, e.Reason)
}

// Join builds a join frame.
func Join(ref uint32, topic string) *Frame {
	return &Frame{Type: FrameJoin, Ref: ref, Topic: topic}
}

// Leave builds a leave frame.
func Leave(ref uint32, topic string) *Frame {
	return &Frame{Type: FrameLeave, Ref: ref, Topic: topic}
}

// Ack builds an ack frame.
func Ack(ref uint32, topic string) *Frame {
	return &Frame{Type: FrameAck, Ref: ref, Topic: topic}
}

// Errorf builds an error frame.
func Errorf(ref uint32, topic string, code ErrorCode, format string, args ...any) *Frame {
	return &Frame{Type: FrameError, Ref: ref, Topic: topic, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Event builds an event frame routed to ref.
func Event(ref uint32, topic, event string, payload []byte) *Frame {
	return &Frame{Type: FrameEvent, Ref: ref, Topic: topic, Event: event, Payload: payload}
}

// Publish builds a publish frame.
func Publish(topic, event string, payload []byte) *Frame {
	return &Frame{Type: FramePublish, Topic: topic, Event: event, Payload: payload}
}

// Ping builds a ping frame.
func Ping() *Frame {
	return &Frame{Type: FramePing}
}

// Pong builds a pong frame.
func Pong() *Frame {
	return &Frame{Type: FramePong}
}

package subscription

// State is the lifecycle state of a channel record.
type State uint8

const (
	// StateIdle is the state before a record is created.
	StateIdle State = iota

	// StateConnecting means a transport channel is being opened.
	StateConnecting

	// StateSubscribed means the transport confirmed the subscription.
	StateSubscribed

	// StateError means the last attempt failed.
	StateError

	// StateCleanup means the record has been reclaimed. Terminal.
	StateCleanup
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateError:
		return "ERROR"
	case StateCleanup:
		return "CLEANUP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

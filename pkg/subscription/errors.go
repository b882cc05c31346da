package subscription

import (
	"errors"
	"fmt"
)

// Failure causes reported through state handlers and Info.
var (
	// ErrConnection is a CHANNEL_ERROR reported by the transport.
	ErrConnection = errors.New("connection error")

	// ErrTimedOut is a TIMED_OUT reported by the transport.
	// It is handled exactly like ErrConnection.
	ErrTimedOut = fmt.Errorf("%w: timed out", ErrConnection)

	// ErrSetup means opening the transport channel failed.
	ErrSetup = errors.New("channel setup failed")

	// ErrUnexpectedClosure is a CLOSED reported outside of cleanup.
	ErrUnexpectedClosure = errors.New("channel closed unexpectedly")

	// ErrRetriesExhausted means the retry limit was reached.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// CallbackError is a panic recovered from a subscriber handler.
type CallbackError struct {
	Key   string
	Token string
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("subscriber %s on %q panicked: %v", e.Token, e.Key, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

package pulse

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrInvalidKey is returned when an event key is empty.
	ErrInvalidKey = errors.New("event key must be a non-empty string")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrListenerPanic is matched by errors.Is against *PanicError.
	ErrListenerPanic = errors.New("listener panicked")
)

// ListenerError wraps an error returned by a listener with the
// subscription it came from. Listener errors are isolated: they are
// reported through the bus logger and error handler but never
// propagate to the trigger caller.
type ListenerError struct {
	// SubscriptionID is the ID of the subscription whose listener failed.
	SubscriptionID string

	// Key is the event key the listener was subscribed to.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return "listener error for subscription " + e.SubscriptionID + " on key " + e.Key + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered listener panic as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose listener panicked.
	SubscriptionID string

	// Key is the event key the listener was subscribed to.
	Key string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at recovery.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "listener panic for subscription " + e.SubscriptionID + " on key " + e.Key
}

// Is allows errors.Is to match PanicError with ErrListenerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrListenerPanic
}

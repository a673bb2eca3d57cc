package pulse

import (
	"context"
	"reflect"
)

// Handler is the interface for event listeners.
// Arguments are passed through from Trigger unchanged.
type Handler interface {
	Handle(ctx context.Context, args ...any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, args ...any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, args ...any) error {
	return f(ctx, args...)
}

// DeliveryMode specifies how a listener is invoked during a trigger.
type DeliveryMode int

const (
	// DeliverySync runs the listener on the trigger caller's goroutine.
	// Sync listeners complete before Trigger returns.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync runs the listener on its own goroutine. The
	// trigger's Result resolves once all async listeners have settled.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// identityOf derives a comparable identity for listener deduplication.
// Functions dedupe by code pointer, so distinct closures created from
// the same literal share an identity. Pointer-receiver handlers dedupe
// by pointer value. Returns nil when no stable identity exists.
func identityOf(h Handler) any {
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Chan, reflect.Map, reflect.UnsafePointer:
		return v.Pointer()
	default:
		if v.Comparable() {
			return h
		}
		return nil
	}
}

// isNilHandler reports whether h is nil or wraps a nil value.
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Chan, reflect.Map, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

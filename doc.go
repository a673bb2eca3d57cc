// Package pulse provides an in-process publish/subscribe event bus.
//
// Components register interest in named events and later cause all
// interested listeners to run, optionally waiting for asynchronous
// listeners to finish. One Bus is one independent event channel space;
// there is no global shared instance.
//
// # Keys and Listeners
//
// Events are addressed by plain string keys. A key must be non-empty;
// there is no pattern matching or hierarchy. Listeners implement
// Handler (or use the HandlerFunc adapter) and receive the trigger's
// arguments unchanged:
//
//	bus := pulse.New()
//	sub, err := bus.Subscribe("config.changed", pulse.HandlerFunc(
//	    func(ctx context.Context, args ...any) error {
//	        reload(args[0].(string))
//	        return nil
//	    }))
//	defer sub.Unsubscribe()
//
// Per key, the bus keeps an insertion-ordered set of unique listeners.
// Subscribing the same listener twice under one key stores it once and
// returns the handle of the existing entry. Listener identity is
// derived from the handler value (function pointer, or pointer value
// for pointer-receiver handlers); distinct closures built from the
// same function literal share an identity, so deduplication is
// best-effort for closures.
//
// # Delivery
//
// Trigger invokes every listener registered at trigger time, in
// registration order:
//
//	res, err := bus.Trigger(ctx, "config.changed", path)
//	if err != nil {
//	    return err // only malformed input fails a trigger
//	}
//	if err := res.Wait(ctx); err != nil {
//	    return err
//	}
//
// Synchronous listeners (the default) run on the caller's goroutine
// and have completed by the time Trigger returns. Listeners subscribed
// with WithAsync run concurrently on their own goroutines; the
// returned Result resolves once all of them have settled. A trigger
// with no asynchronous listeners returns an already-resolved Result.
//
// Listener failures never abort a dispatch and never fail the Result:
// errors and panics are isolated, logged, handed to the optional
// WithErrorHandler hook, and collected for inspection via Result.Err.
//
// The ratelimit subpackage wraps handlers with debounce and throttle
// coalescing before they are subscribed; the provider subpackage adds
// a configuration surface and lifecycle-scoped subscriptions on top of
// the bus.
package pulse

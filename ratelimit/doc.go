// Package ratelimit provides call-rate wrappers for event listeners.
//
// Debouncer and Throttler are pure decorators over a pulse.Handler:
// they know nothing about the bus and can wrap any handler before it
// is subscribed. Both coalesce calls in time, buffering the latest
// arguments, and deliver to the wrapped handler from a timer
// goroutine. Stop releases any pending timer so nothing fires after
// the owner is gone.
//
// Timers come from an injectable clock (benbjohnson/clock); tests use
// a mock clock for deterministic timing.
package ratelimit

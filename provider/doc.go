// Package provider exposes a pulse.Bus to component code behind a
// small configuration surface.
//
// A Provider offers subscribe, trigger, and the introspection
// operations of its bus, plus per-subscription debounce/throttle
// wrapping, a max-listeners hint (warning only), and a debug-logging
// flag. None of these change the bus's contracts.
//
// A Scope binds subscriptions to an owner's lifecycle: every
// unsubscribe handle and wrapper timer it issues is torn down by a
// single idempotent Close, so no listener or timer outlives the owner.
package provider

// Package script bridges a provider into a gopher-lua state.
//
// A Module installs on/off/once/emit functions under a named global
// table, letting embedded scripts subscribe to and trigger bus events.
// Handler functions are pinned in a Lua table so the Lua GC cannot
// collect them while subscribed, and Cleanup releases everything the
// module registered.
//
// gopher-lua states are not goroutine-safe: a Module must only be
// driven (registered, triggered, cleaned up) from the goroutine that
// owns its LState.
package script

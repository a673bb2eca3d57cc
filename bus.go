package pulse

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-process publish/subscribe event bus. One Bus is one
// independent event channel space; create as many as needed and pass
// them explicitly to their consumers.
type Bus struct {
	registry *Registry

	logger     *zap.Logger
	errHandler func(error)

	// Stats
	triggers  atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report isolated listener
// failures. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithErrorHandler installs a hook that receives every isolated
// listener failure as a *ListenerError or *PanicError. The hook runs
// on the goroutine the failure occurred on and must not block.
func WithErrorHandler(h func(error)) Option {
	return func(b *Bus) {
		b.errHandler = h
	}
}

// New creates an event bus with the given options.
func New(opts ...Option) *Bus {
	b := &Bus{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for the given key and returns its
// subscription handle. Subscribing a listener already present under
// the key is a no-op that returns the existing entry's handle.
func (b *Bus) Subscribe(key string, h Handler, opts ...SubscribeOption) (*Subscription, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if isNilHandler(h) {
		return nil, ErrNilHandler
	}

	cfg := defaultSubscribeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	identity := cfg.identity
	if identity == nil {
		identity = identityOf(h)
	}
	sub := &Subscription{
		id:       uuid.NewString(),
		key:      key,
		handler:  h,
		identity: identity,
		mode:     cfg.mode,
		reg:      b.registry,
	}
	if sub.identity == nil {
		// No stable identity: treat every subscription as distinct.
		sub.identity = sub.id
	}

	entry, _ := b.registry.Add(sub)
	return entry, nil
}

// Trigger invokes every listener registered for key at call time, in
// registration order, passing args through unchanged.
//
// Synchronous listeners have completed by the time Trigger returns;
// asynchronous listeners run concurrently on their own goroutines.
// The returned Result resolves once all of them have settled and is
// already resolved when no asynchronous listener was started.
//
// Trigger fails only on malformed input (ErrInvalidKey). Listener
// errors and panics are isolated: dispatch continues, the Result still
// resolves, and the failures are reported through the bus logger, the
// error handler hook, and Result.Err.
func (b *Bus) Trigger(ctx context.Context, key string, args ...any) (*Result, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	snapshot := b.registry.Snapshot(key)
	if len(snapshot) == 0 {
		return resolvedResult, nil
	}

	b.triggers.Add(1)

	res := &Result{}
	var wg sync.WaitGroup
	async := 0

	for _, sub := range snapshot {
		if sub.mode == DeliveryAsync {
			async++
			wg.Add(1)
			go func(sub *Subscription) {
				defer wg.Done()
				b.deliver(ctx, res, sub, args)
			}(sub)
			continue
		}
		b.deliver(ctx, res, sub, args)
	}

	if async == 0 {
		res.done = closedChan
		return res, nil
	}

	res.done = make(chan struct{})
	go func() {
		wg.Wait()
		close(res.done)
	}()
	return res, nil
}

// deliver runs one listener and isolates its failure.
func (b *Bus) deliver(ctx context.Context, res *Result, sub *Subscription, args []any) {
	err := b.invoke(ctx, sub, args)
	if err == nil {
		b.delivered.Add(1)
		return
	}
	res.recordFailure(err)
	b.report(sub, err)
}

// invoke executes the listener with panic recovery.
func (b *Bus) invoke(ctx context.Context, sub *Subscription, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
			err = &PanicError{
				SubscriptionID: sub.id,
				Key:            sub.key,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()

	if herr := sub.handler.Handle(ctx, args...); herr != nil {
		return &ListenerError{
			SubscriptionID: sub.id,
			Key:            sub.key,
			Err:            herr,
		}
	}
	return nil
}

// report sends an isolated failure to the logger and error handler.
func (b *Bus) report(sub *Subscription, err error) {
	b.failed.Add(1)
	b.logger.Warn("listener failure",
		zap.String("key", sub.key),
		zap.String("subscription", sub.id),
		zap.Error(err),
	)
	if b.errHandler != nil {
		// The hook must not take the bus down with it.
		func() {
			defer func() { _ = recover() }()
			b.errHandler(err)
		}()
	}
}

// ListenerCount returns the number of listeners for a key.
func (b *Bus) ListenerCount(key string) int {
	return b.registry.Count(key)
}

// HasListeners reports whether any listener is registered for the key.
func (b *Bus) HasListeners(key string) bool {
	return b.registry.Has(key)
}

// EventKeys returns all keys with at least one listener, in first
// subscription order.
func (b *Bus) EventKeys() []string {
	return b.registry.Keys()
}

// Snapshot returns a read-only copy of the full key-to-handlers
// mapping for introspection and tests.
func (b *Bus) Snapshot() map[string][]Handler {
	return b.registry.All()
}

// Clear removes every listener and every key. A key triggered after
// Clear behaves exactly like one that was never subscribed, and
// previously issued subscription handles remain safe no-ops.
func (b *Bus) Clear() {
	b.registry.Clear()
}

// Registry exposes the bus's listener registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Stats contains cumulative bus counters.
type Stats struct {
	// Triggers is the number of Trigger calls that found listeners.
	Triggers uint64

	// Delivered is the number of successful listener executions.
	Delivered uint64

	// Failures is the number of isolated listener failures,
	// including panics.
	Failures uint64

	// Panics is the number of recovered listener panics.
	Panics uint64

	// ActiveListeners is the current number of subscriptions.
	ActiveListeners int
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	active := 0
	for _, key := range b.registry.Keys() {
		active += b.registry.Count(key)
	}
	return Stats{
		Triggers:        b.triggers.Load(),
		Delivered:       b.delivered.Load(),
		Failures:        b.failed.Load(),
		Panics:          b.panicked.Load(),
		ActiveListeners: active,
	}
}

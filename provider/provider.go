package provider

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/pulsebus/pulse"
	"github.com/pulsebus/pulse/ratelimit"
)

// Provider wraps a bus for consumption by component code. It owns no
// listeners itself; it decorates subscriptions with call-rate wrappers
// and surfaces informational warnings.
type Provider struct {
	bus    *pulse.Bus
	logger *zap.Logger

	maxListeners int
	debug        bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxListeners sets an informational per-key listener count hint.
// Exceeding it logs a warning; nothing is enforced.
func WithMaxListeners(n int) Option {
	return func(p *Provider) {
		p.maxListeners = n
	}
}

// WithDebug enables debug logging of subscribes and triggers.
func WithDebug(enabled bool) Option {
	return func(p *Provider) {
		p.debug = enabled
	}
}

// New creates a Provider over the given bus.
func New(bus *pulse.Bus, opts ...Option) *Provider {
	p := &Provider{
		bus:    bus,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubscribeOption configures one provider subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	debounce time.Duration
	throttle time.Duration
	async    bool
	identity any
	clk      clock.Clock
}

// WithDebounce wraps the listener in a ratelimit.Debouncer before
// subscribing it.
func WithDebounce(delay time.Duration) SubscribeOption {
	return func(c *subscribeConfig) {
		c.debounce = delay
	}
}

// WithThrottle wraps the listener in a ratelimit.Throttler before
// subscribing it. When combined with WithDebounce, debounce takes
// precedence and a warning is logged.
func WithThrottle(interval time.Duration) SubscribeOption {
	return func(c *subscribeConfig) {
		c.throttle = interval
	}
}

// WithAsync subscribes the listener for asynchronous delivery.
func WithAsync() SubscribeOption {
	return func(c *subscribeConfig) {
		c.async = true
	}
}

// WithIdentity sets an explicit deduplication token for the
// subscription; see pulse.WithIdentity.
func WithIdentity(token any) SubscribeOption {
	return func(c *subscribeConfig) {
		c.identity = token
	}
}

// WithClock sets the clock used by any call-rate wrapper created for
// this subscription. Intended for tests.
func WithClock(c clock.Clock) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.clk = c
	}
}

// stopper is the teardown surface shared by both wrapper kinds.
type stopper interface {
	Stop()
}

// Subscribe registers fn for key and returns an idempotent
// unsubscribe function that also discards any pending wrapper timer.
func (p *Provider) Subscribe(key string, fn pulse.HandlerFunc, opts ...SubscribeOption) (func(), error) {
	cfg := subscribeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var h pulse.Handler = fn
	var wrapper stopper

	wrapperOpts := []ratelimit.Option{
		ratelimit.WithErrorHandler(func(err error) {
			p.logger.Warn("coalesced listener failure",
				zap.String("key", key),
				zap.Error(err),
			)
		}),
	}
	if cfg.clk != nil {
		wrapperOpts = append(wrapperOpts, ratelimit.WithClock(cfg.clk))
	}

	switch {
	case cfg.debounce > 0 && cfg.throttle > 0:
		p.logger.Warn("both debounce and throttle requested; debounce takes precedence",
			zap.String("key", key),
		)
		fallthrough
	case cfg.debounce > 0:
		d := ratelimit.NewDebouncer(h, cfg.debounce, wrapperOpts...)
		h, wrapper = d, d
	case cfg.throttle > 0:
		t := ratelimit.NewThrottler(h, cfg.throttle, wrapperOpts...)
		h, wrapper = t, t
	}

	var busOpts []pulse.SubscribeOption
	if cfg.async {
		busOpts = append(busOpts, pulse.WithAsync())
	}
	if cfg.identity != nil {
		busOpts = append(busOpts, pulse.WithIdentity(cfg.identity))
	}

	sub, err := p.bus.Subscribe(key, h, busOpts...)
	if err != nil {
		if wrapper != nil {
			wrapper.Stop()
		}
		return nil, err
	}

	if p.maxListeners > 0 {
		if count := p.bus.ListenerCount(key); count > p.maxListeners {
			p.logger.Warn("listener count exceeds hint",
				zap.String("key", key),
				zap.Int("count", count),
				zap.Int("max", p.maxListeners),
			)
		}
	}
	if p.debug {
		p.logger.Debug("subscribed",
			zap.String("key", key),
			zap.String("subscription", sub.ID()),
		)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Unsubscribe()
			if wrapper != nil {
				wrapper.Stop()
			}
		})
	}, nil
}

// Trigger dispatches the event through the underlying bus.
func (p *Provider) Trigger(ctx context.Context, key string, args ...any) (*pulse.Result, error) {
	if p.debug {
		p.logger.Debug("trigger", zap.String("key", key))
	}
	return p.bus.Trigger(ctx, key, args...)
}

// ListenerCount returns the number of listeners for a key.
func (p *Provider) ListenerCount(key string) int {
	return p.bus.ListenerCount(key)
}

// HasListeners reports whether any listener is registered for the key.
func (p *Provider) HasListeners(key string) bool {
	return p.bus.HasListeners(key)
}

// EventKeys returns all keys with at least one listener.
func (p *Provider) EventKeys() []string {
	return p.bus.EventKeys()
}

// Bus returns the underlying bus.
func (p *Provider) Bus() *pulse.Bus {
	return p.bus
}

package ratelimit

import "github.com/benbjohnson/clock"

// Option configures a Debouncer or Throttler.
type Option func(*config)

type config struct {
	clk     clock.Clock
	onError func(error)
}

func newConfig(opts []Option) config {
	cfg := config{clk: clock.New()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock sets the clock used to schedule coalesced deliveries.
// Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clk = c
		}
	}
}

// WithErrorHandler installs a hook for errors returned by the wrapped
// handler. Coalesced deliveries happen outside any trigger, so without
// a hook those errors are discarded.
func WithErrorHandler(h func(error)) Option {
	return func(cfg *config) {
		cfg.onError = h
	}
}

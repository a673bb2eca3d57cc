package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pulsebus/pulse"
)

// Throttler wraps a handler so that it is delivered at most once per
// interval. A call arriving once the interval has elapsed since the
// last delivery fires immediately with its own arguments. Calls inside
// the window are buffered last-write-wins as the trailing call, which
// fires when the remaining window time elapses.
//
// Thread-safety: all methods are safe for concurrent use.
type Throttler struct {
	next     pulse.Handler
	interval time.Duration
	clk      clock.Clock
	onError  func(error)

	mu       sync.Mutex
	lastFire time.Time
	timer    *clock.Timer
	pending  bool
	seq      uint64 // sequence number to detect stale timer callbacks
	ctx      context.Context
	args     []any
	stopped  bool
}

// NewThrottler wraps next so that at most one call per interval is
// delivered, with trailing delivery of the latest buffered call.
func NewThrottler(next pulse.Handler, interval time.Duration, opts ...Option) *Throttler {
	cfg := newConfig(opts)
	return &Throttler{
		next:     next,
		interval: interval,
		clk:      cfg.clk,
		onError:  cfg.onError,
	}
}

// Handle implements pulse.Handler. Outside the window it delivers
// immediately on the caller's goroutine; inside the window it buffers
// the call as the trailing delivery and returns.
func (t *Throttler) Handle(ctx context.Context, args ...any) error {
	t.mu.Lock()

	if t.stopped {
		t.mu.Unlock()
		return nil
	}

	now := t.clk.Now()
	elapsed := now.Sub(t.lastFire)

	if elapsed >= t.interval {
		// Leading edge: fire now and cancel any pending trailing call.
		t.lastFire = now
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.seq++
		t.pending = false
		t.ctx, t.args = nil, nil
		t.mu.Unlock()

		t.invoke(ctx, args)
		return nil
	}

	// Within the window: buffer as the trailing call, last write wins.
	t.pending = true
	t.ctx, t.args = ctx, args
	if t.timer == nil {
		t.seq++
		seq := t.seq
		t.timer = t.clk.AfterFunc(t.interval-elapsed, func() {
			t.fireTrailing(seq)
		})
	}
	t.mu.Unlock()
	return nil
}

// fireTrailing delivers whatever arguments are buffered when the
// window elapses.
func (t *Throttler) fireTrailing(seq uint64) {
	t.mu.Lock()
	t.timer = nil
	if t.stopped || !t.pending || t.seq != seq {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.lastFire = t.clk.Now()
	ctx, args := t.ctx, t.args
	t.ctx, t.args = nil, nil
	t.mu.Unlock()

	t.invoke(ctx, args)
}

// Stop discards any pending trailing call and releases its timer.
// After Stop the throttler drops all further calls.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
	t.pending = false
	t.ctx, t.args = nil, nil
	t.stopped = true
}

// Pending reports whether a trailing call is waiting to fire.
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Throttler) invoke(ctx context.Context, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := t.next.Handle(ctx, args...); err != nil && t.onError != nil {
		t.onError(err)
	}
}

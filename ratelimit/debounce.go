package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pulsebus/pulse"
)

// Debouncer wraps a handler so that rapid successive calls collapse
// into a single delivery. Each call cancels the previously scheduled
// delivery, remembers the latest arguments, and schedules a new
// delivery for delay later: only the last call of a burst reaches the
// wrapped handler, once the burst has been quiet for delay.
//
// Thread-safety: all methods are safe for concurrent use. The wrapped
// handler is never called concurrently with itself by the debouncer.
type Debouncer struct {
	next    pulse.Handler
	delay   time.Duration
	clk     clock.Clock
	onError func(error)

	mu      sync.Mutex
	timer   *clock.Timer
	pending bool
	seq     uint64 // sequence number to detect stale timer callbacks
	ctx     context.Context
	args    []any
	stopped bool
}

// NewDebouncer wraps next so that only the last call within any
// delay-spaced burst is delivered.
func NewDebouncer(next pulse.Handler, delay time.Duration, opts ...Option) *Debouncer {
	cfg := newConfig(opts)
	return &Debouncer{
		next:    next,
		delay:   delay,
		clk:     cfg.clk,
		onError: cfg.onError,
	}
}

// Handle implements pulse.Handler. It buffers the call and returns
// immediately; the wrapped handler runs after the quiet period.
func (d *Debouncer) Handle(ctx context.Context, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return nil
	}

	d.pending = true
	d.ctx, d.args = ctx, args
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clk.AfterFunc(d.delay, func() {
		d.fire(seq)
	})
	return nil
}

// fire delivers the buffered call if it is still the current one.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || d.seq != seq {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	ctx, args := d.ctx, d.args
	d.ctx, d.args = nil, nil
	d.mu.Unlock()

	d.invoke(ctx, args)
}

// Flush delivers a pending call immediately, canceling its timer.
// It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	ctx, args := d.ctx, d.args
	d.ctx, d.args = nil, nil
	d.mu.Unlock()

	d.invoke(ctx, args)
}

// Stop discards any pending call and releases its timer. After Stop
// the debouncer drops all further calls; nothing fires after the
// owner is gone.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
	d.ctx, d.args = nil, nil
	d.stopped = true
}

// Pending reports whether a buffered call is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) invoke(ctx context.Context, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.next.Handle(ctx, args...); err != nil && d.onError != nil {
		d.onError(err)
	}
}

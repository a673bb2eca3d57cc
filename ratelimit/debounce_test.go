package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsebus/pulse"
)

// recorder captures deliveries from a wrapper.
type recorder struct {
	mu    sync.Mutex
	calls [][]any
	err   error
}

func (r *recorder) Handle(_ context.Context, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	d := NewDebouncer(rec, 100*time.Millisecond, WithClock(mock))

	ctx := context.Background()
	require.NoError(t, d.Handle(ctx, 1))
	mock.Add(10 * time.Millisecond)
	require.NoError(t, d.Handle(ctx, 2))
	mock.Add(10 * time.Millisecond)
	require.NoError(t, d.Handle(ctx, 3))

	assert.Equal(t, 0, rec.count(), "nothing fires during the burst")
	assert.True(t, d.Pending())

	mock.Add(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "exactly one downstream delivery")
	assert.Equal(t, []any{3}, rec.last(), "delivery carries the last call's arguments")
	assert.False(t, d.Pending())
}

func TestDebouncer_SpacedCallsEachFire(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	d := NewDebouncer(rec, 50*time.Millisecond, WithClock(mock))

	ctx := context.Background()
	require.NoError(t, d.Handle(ctx, "a"))
	mock.Add(60 * time.Millisecond)
	require.NoError(t, d.Handle(ctx, "b"))
	mock.Add(60 * time.Millisecond)

	assert.Equal(t, 2, rec.count())
}

func TestDebouncer_StopDiscardsPending(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	d := NewDebouncer(rec, 50*time.Millisecond, WithClock(mock))

	require.NoError(t, d.Handle(context.Background(), 1))
	d.Stop()
	mock.Add(time.Second)

	assert.Equal(t, 0, rec.count(), "nothing fires after Stop")

	// Stopped debouncers drop further calls too.
	require.NoError(t, d.Handle(context.Background(), 2))
	mock.Add(time.Second)
	assert.Equal(t, 0, rec.count())
}

func TestDebouncer_FlushFiresImmediately(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	d := NewDebouncer(rec, 50*time.Millisecond, WithClock(mock))

	require.NoError(t, d.Handle(context.Background(), "now"))
	d.Flush()

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []any{"now"}, rec.last())

	mock.Add(time.Second)
	assert.Equal(t, 1, rec.count(), "flushed call must not fire again from its timer")

	// Flush with nothing pending is a no-op.
	d.Flush()
	assert.Equal(t, 1, rec.count())
}

func TestDebouncer_ErrorHandler(t *testing.T) {
	mock := clock.NewMock()
	boom := errors.New("boom")
	rec := &recorder{err: boom}

	var mu sync.Mutex
	var got error
	d := NewDebouncer(rec, 50*time.Millisecond,
		WithClock(mock),
		WithErrorHandler(func(err error) {
			mu.Lock()
			got = err
			mu.Unlock()
		}))

	require.NoError(t, d.Handle(context.Background()))
	mock.Add(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, got, boom)
}

func TestDebouncer_ImplementsHandler(t *testing.T) {
	var _ pulse.Handler = (*Debouncer)(nil)
	var _ pulse.Handler = (*Throttler)(nil)
}

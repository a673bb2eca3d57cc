package provider

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsebus/pulse"
)

func TestScope_CloseTearsEverythingDown(t *testing.T) {
	mock := clock.NewMock()
	prov := New(pulse.New())
	scope := prov.Scope()

	var plain, debounced atomic.Int32
	_, err := scope.Subscribe("k", func(context.Context, ...any) error {
		plain.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = scope.Subscribe("k", func(context.Context, ...any) error {
		debounced.Add(1)
		return nil
	}, WithDebounce(100*time.Millisecond), WithClock(mock))
	require.NoError(t, err)
	require.Equal(t, 2, prov.ListenerCount("k"))

	// Buffer a debounced delivery, then close before it fires.
	_, err = prov.Trigger(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, int32(1), plain.Load())

	scope.Close()

	assert.Equal(t, 0, prov.ListenerCount("k"))
	mock.Add(time.Second)
	assert.Equal(t, int32(0), debounced.Load(),
		"pending wrapper timer must not fire after Close")

	_, err = prov.Trigger(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int32(1), plain.Load(), "no listener survives Close")

	assert.NotPanics(t, scope.Close, "Close is idempotent")
}

func TestScope_SubscribeAfterClose(t *testing.T) {
	prov := New(pulse.New())
	scope := prov.Scope()
	scope.Close()

	_, err := scope.Subscribe("k", func(context.Context, ...any) error { return nil })
	assert.ErrorIs(t, err, ErrScopeClosed)
}

func TestScope_IndividualUnsubscribeStillWorks(t *testing.T) {
	prov := New(pulse.New())
	scope := prov.Scope()

	cancel, err := scope.Subscribe("k", func(context.Context, ...any) error { return nil })
	require.NoError(t, err)

	cancel()
	assert.Equal(t, 0, prov.ListenerCount("k"))

	// Close replays the handle; it must stay a safe no-op.
	assert.NotPanics(t, scope.Close)
}

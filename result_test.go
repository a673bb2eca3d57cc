package pulse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestResult_WaitHonorsContext(t *testing.T) {
	bus := New()

	release := make(chan struct{})
	_, err := bus.Subscribe("k", HandlerFunc(func(context.Context, ...any) error {
		<-release
		return nil
	}), WithAsync())
	require.NoError(t, err)

	res, err := bus.Trigger(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, res.Wait(ctx), context.Canceled)

	close(release)
	assert.NoError(t, res.Wait(context.Background()))
}

func TestResult_ErrAggregatesFailures(t *testing.T) {
	bus := New()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	_, err := bus.Subscribe("k", HandlerFunc(func(context.Context, ...any) error {
		return errA
	}))
	require.NoError(t, err)
	_, err = bus.Subscribe("k", HandlerFunc(func(context.Context, ...any) error {
		return errB
	}))
	require.NoError(t, err)

	res, err := bus.Trigger(context.Background(), "k")
	require.NoError(t, err)

	combined := res.Err()
	require.Error(t, combined)
	assert.Len(t, multierr.Errors(combined), 2)
	assert.ErrorIs(t, combined, errA)
	assert.ErrorIs(t, combined, errB)
}

func TestResult_ErrNilOnSuccess(t *testing.T) {
	bus := New()

	_, err := bus.Subscribe("k", HandlerFunc(func(context.Context, ...any) error { return nil }))
	require.NoError(t, err)

	res, err := bus.Trigger(context.Background(), "k")
	require.NoError(t, err)
	assert.NoError(t, res.Err())
}

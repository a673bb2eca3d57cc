package pulse

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// closedChan is shared by every already-resolved Result.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// resolvedResult is returned for triggers with no listeners, so the
// fast path allocates nothing.
var resolvedResult = &Result{done: closedChan}

// Result is the completion handle returned by Trigger. It resolves
// once every asynchronous listener started by the trigger has settled;
// for fully-synchronous triggers it is resolved before Trigger
// returns. Listener failures never prevent resolution.
type Result struct {
	done chan struct{}

	mu       sync.Mutex
	failures []error
}

// Done returns a channel that is closed when the trigger has settled.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the trigger settles or ctx is cancelled. It
// returns the context error on cancellation; listener misbehavior
// never surfaces here.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the isolated listener failures recorded during the
// trigger, combined into one error, or nil if every listener
// succeeded. It is a diagnostic side channel: the failures it reports
// were already contained and did not affect other listeners or Wait.
// Call it after the result has settled for a complete view.
func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Combine(r.failures...)
}

func (r *Result) recordFailure(err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

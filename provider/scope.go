package provider

import (
	"errors"
	"sync"

	"github.com/pulsebus/pulse"
)

// ErrScopeClosed is returned by Subscribe on a closed scope.
var ErrScopeClosed = errors.New("scope is closed")

// Scope binds subscriptions to an owner's lifecycle. Every
// unsubscribe handle it issues is retained and replayed by Close, so
// no listener or wrapper timer outlives the owner.
type Scope struct {
	p *Provider

	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// Scope returns a new lifecycle scope over the provider.
func (p *Provider) Scope() *Scope {
	return &Scope{p: p}
}

// Subscribe registers fn for key through the provider and ties its
// teardown to the scope. The returned unsubscribe function may still
// be called individually before Close.
func (s *Scope) Subscribe(key string, fn pulse.HandlerFunc, opts ...SubscribeOption) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	s.mu.Unlock()

	cancel, err := s.p.Subscribe(key, fn, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrScopeClosed
	}
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	return cancel, nil
}

// Close unsubscribes everything the scope issued and discards any
// pending wrapper timers. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

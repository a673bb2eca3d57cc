package pulse

import "sync/atomic"

// Subscription is the handle returned by Subscribe. It identifies one
// listener entry under one key and is the only way to remove it.
type Subscription struct {
	id       string
	key      string
	handler  Handler
	identity any
	mode     DeliveryMode
	reg      *Registry

	cancelled atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Key returns the event key the subscription is registered under.
func (s *Subscription) Key() string {
	return s.key
}

// Mode returns the subscription's delivery mode.
func (s *Subscription) Mode() DeliveryMode {
	return s.mode
}

// Handler returns the subscribed handler.
func (s *Subscription) Handler() Handler {
	return s.handler
}

// Unsubscribe removes exactly the listener this handle was issued for.
// It is idempotent: calling it more than once, or after Clear, has no
// additional effect and never panics.
func (s *Subscription) Unsubscribe() {
	if s.cancelled.Swap(true) {
		return
	}
	s.reg.Remove(s)
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	mode     DeliveryMode
	identity any
}

func defaultSubscribeConfig() subscribeConfig {
	return subscribeConfig{mode: DeliverySync}
}

// WithDeliveryMode sets the delivery mode for a subscription.
func WithDeliveryMode(m DeliveryMode) SubscribeOption {
	return func(c *subscribeConfig) {
		c.mode = m
	}
}

// WithAsync subscribes the listener for asynchronous delivery.
func WithAsync() SubscribeOption {
	return WithDeliveryMode(DeliveryAsync)
}

// WithIdentity sets an explicit comparable deduplication token for the
// subscription, overriding the identity derived from the handler
// value. Use it when distinct closures share a function literal, or to
// make two handler values count as one listener.
func WithIdentity(token any) SubscribeOption {
	return func(c *subscribeConfig) {
		c.identity = token
	}
}

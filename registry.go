package pulse

import "sync"

// Registry holds, per event key, the insertion-ordered set of current
// subscriptions. It is safe for concurrent use: mutations take the
// write lock, snapshots are taken atomically under the read lock.
type Registry struct {
	mu       sync.RWMutex
	sets     map[string]*listenerSet
	keyOrder []string
}

// listenerSet is one key's members: an ordered slice for dispatch
// order plus an identity index for set semantics.
type listenerSet struct {
	ordered []*Subscription
	index   map[any]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sets: make(map[string]*listenerSet),
	}
}

// Add inserts a subscription into its key's listener set, creating the
// set lazily. If a subscription with the same listener identity is
// already present, the existing entry is returned and added is false.
func (r *Registry) Add(sub *Subscription) (entry *Subscription, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[sub.key]
	if !ok {
		set = &listenerSet{index: make(map[any]*Subscription)}
		r.sets[sub.key] = set
		r.keyOrder = append(r.keyOrder, sub.key)
	}

	if existing, ok := set.index[sub.identity]; ok {
		return existing, false
	}

	set.index[sub.identity] = sub
	set.ordered = append(set.ordered, sub)
	return sub, true
}

// Remove deletes a subscription from its key's listener set. When the
// set becomes empty the key entry is removed entirely, keeping key
// enumeration accurate. Removing an absent subscription is a no-op.
func (r *Registry) Remove(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[sub.key]
	if !ok {
		return false
	}

	// Stale handles (from before Clear, or superseded by a later
	// subscription with the same identity) must not remove the
	// current entry.
	if existing, ok := set.index[sub.identity]; !ok || existing != sub {
		return false
	}

	delete(set.index, sub.identity)
	for i, s := range set.ordered {
		if s == sub {
			set.ordered = append(set.ordered[:i], set.ordered[i+1:]...)
			break
		}
	}

	if len(set.ordered) == 0 {
		delete(r.sets, sub.key)
		r.removeKeyLocked(sub.key)
	}
	return true
}

// Snapshot returns an ordered copy of the key's current members.
// Callers may iterate it while the registry is mutated concurrently.
func (r *Registry) Snapshot(key string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[key]
	if !ok {
		return nil
	}
	result := make([]*Subscription, len(set.ordered))
	copy(result, set.ordered)
	return result
}

// Count returns the number of listeners for a key.
func (r *Registry) Count(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[key]
	if !ok {
		return 0
	}
	return len(set.ordered)
}

// Has reports whether any listener is registered for the key.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sets[key]
	return ok
}

// Keys returns all keys with at least one listener, ordered by each
// key's first-ever subscription among still-present keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.keyOrder) == 0 {
		return nil
	}
	keys := make([]string, len(r.keyOrder))
	copy(keys, r.keyOrder)
	return keys
}

// All returns a read-only copy of the full key-to-handlers mapping,
// intended for introspection and tests.
func (r *Registry) All() map[string][]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]Handler, len(r.sets))
	for key, set := range r.sets {
		handlers := make([]Handler, len(set.ordered))
		for i, sub := range set.ordered {
			handlers[i] = sub.handler
		}
		result[key] = handlers
	}
	return result
}

// Clear removes every listener set and every key. Subscription handles
// issued before Clear remain safe no-ops.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sets = make(map[string]*listenerSet)
	r.keyOrder = nil
}

// removeKeyLocked drops a key from the insertion-order slice.
// Caller must hold the write lock.
func (r *Registry) removeKeyLocked(key string) {
	for i, k := range r.keyOrder {
		if k == key {
			r.keyOrder = append(r.keyOrder[:i], r.keyOrder[i+1:]...)
			return
		}
	}
}

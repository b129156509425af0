package store

import (
	"context"
	"sync"
)

// Registry hands out one RemoteStore per authenticated user, loading the
// user's collection on first access. Dropping an entry (on sign-out)
// forces a full reload on the next sign-in.
type Registry struct {
	mu     sync.Mutex
	coll   Collection
	pub    Publisher
	stores map[int64]*RemoteStore
}

func NewRegistry(coll Collection, pub Publisher) *Registry {
	return &Registry{
		coll:   coll,
		pub:    pub,
		stores: make(map[int64]*RemoteStore),
	}
}

// For returns the store owned by the given user, creating it if needed.
func (r *Registry) For(ctx context.Context, ownerID int64) (*RemoteStore, error) {
	r.mu.Lock()
	if s, ok := r.stores[ownerID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	// Load outside the lock; a concurrent first access for the same user
	// may race the load, in which case the first registered store wins.
	s, err := NewRemoteStore(ctx, r.coll, ownerID, r.pub)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.stores[ownerID]; ok {
		return existing, nil
	}
	r.stores[ownerID] = s
	return s, nil
}

// Drop evicts a user's store, typically on sign-out.
func (r *Registry) Drop(ownerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, ownerID)
}

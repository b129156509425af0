package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fintrack/internal/core"
)

// Collection is the remote transactions collection, scoped by the owning
// user. IDs are assigned by the collection on insert.
type Collection interface {
	Insert(ctx context.Context, ownerID int64, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, ownerID, id int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]core.Transaction, error)
}

// RemoteStore is the cloud-variant store for one authenticated user.
// Every mutation is an individual remote call; the in-memory list is
// touched only after the collection confirms, so a failed call leaves
// the session state unchanged and no rollback is ever needed.
//
// There is deliberately no in-flight mutation guard: two rapid adds may
// race and their completion order decides list order. Accepted behavior,
// not a bug.
type RemoteStore struct {
	mu    sync.Mutex
	coll  Collection
	pub   Publisher
	owner int64
	txs   []core.Transaction
}

// NewRemoteStore loads the user's full collection, which happens on every
// transition into the authenticated state.
func NewRemoteStore(ctx context.Context, coll Collection, ownerID int64, pub Publisher) (*RemoteStore, error) {
	txs, err := coll.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for owner %d: %w", ownerID, err)
	}
	return &RemoteStore{coll: coll, pub: pub, owner: ownerID, txs: txs}, nil
}

// List implements Store.
func (s *RemoteStore) List(category string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterSorted(s.txs, category)
}

// Add implements Store.
func (s *RemoteStore) Add(ctx context.Context, c Candidate) (core.Transaction, error) {
	t, err := c.build(core.Today())
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.coll.Insert(ctx, s.owner, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	s.mu.Lock()
	s.txs = append([]core.Transaction{created}, s.txs...)
	s.mu.Unlock()

	if s.pub != nil {
		if err := s.pub.PublishTransactionUpserted(ctx, s.owner, created); err != nil {
			slog.WarnContext(ctx, "Failed to publish transaction event", "id", created.ID, "error", err)
		}
	}
	return created, nil
}

// Remove implements Store.
func (s *RemoteStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	found := false
	for _, t := range s.txs {
		if t.ID == id {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return ErrNotFound
	}

	if err := s.coll.Delete(ctx, s.owner, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.mu.Lock()
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.pub != nil {
		if err := s.pub.PublishTransactionDeleted(ctx, s.owner, id); err != nil {
			slog.WarnContext(ctx, "Failed to publish delete event", "id", id, "error", err)
		}
	}
	return nil
}

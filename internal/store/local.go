package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
)

// Slot is the durable key-value collaborator of the local variant: one
// named key holding the JSON-serialized transaction collection.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// LocalStore keeps the session transaction list in memory and writes the
// whole collection to the slot after each mutation, debounced so that
// only the latest pending write survives. The in-memory list stays the
// source of truth for the session even when a write fails.
type LocalStore struct {
	mu   sync.Mutex
	slot Slot
	pub  Publisher

	txs    []core.Transaction
	nextID int64

	status  SaveStatus
	gen     uint64 // bumped per mutation; stale flushes must not report Saved
	pending *time.Timer
	settle  *time.Timer

	debounce     time.Duration
	settleAfter  time.Duration
	writeTimeout time.Duration
}

type LocalOption func(*LocalStore)

// WithDebounce overrides the delay between a mutation and its slot write.
func WithDebounce(d time.Duration) LocalOption {
	return func(s *LocalStore) { s.debounce = d }
}

// WithSettleAfter overrides how long the Saved status lingers before Idle.
func WithSettleAfter(d time.Duration) LocalOption {
	return func(s *LocalStore) { s.settleAfter = d }
}

// WithPublisher attaches a mutation event publisher.
func WithPublisher(p Publisher) LocalOption {
	return func(s *LocalStore) { s.pub = p }
}

// NewLocalStore loads the collection from the slot. An empty slot is
// seeded with the sample dataset so a fresh install has something to show.
func NewLocalStore(ctx context.Context, slot Slot, opts ...LocalOption) (*LocalStore, error) {
	s := &LocalStore{
		slot:         slot,
		debounce:     300 * time.Millisecond,
		settleAfter:  2 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := slot.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	if len(data) == 0 {
		s.txs = seedTransactions()
	} else if err := json.Unmarshal(data, &s.txs); err != nil {
		return nil, fmt.Errorf("decode slot data: %w", err)
	}

	for _, t := range s.txs {
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	if s.nextID == 0 {
		s.nextID = 1
	}

	return s, nil
}

// List implements Store.
func (s *LocalStore) List(category string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterSorted(s.txs, category)
}

// Add implements Store. The new transaction is prepended so the list
// stays most-recent-first.
func (s *LocalStore) Add(ctx context.Context, c Candidate) (core.Transaction, error) {
	t, err := c.build(core.Today())
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	t.ID = s.nextID
	s.nextID++
	s.txs = append([]core.Transaction{t}, s.txs...)
	s.scheduleSaveLocked()
	s.mu.Unlock()

	s.publishUpsert(ctx, t)
	return t, nil
}

// Remove implements Store.
func (s *LocalStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	idx := -1
	for i, t := range s.txs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.txs = append(s.txs[:idx], s.txs[idx+1:]...)
	s.scheduleSaveLocked()
	s.mu.Unlock()

	s.publishDelete(ctx, id)
	return nil
}

// Status reports the persistence indicator.
func (s *LocalStore) Status() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Flush forces any pending debounced write to happen now. Used on
// shutdown so the latest mutations reach the slot.
func (s *LocalStore) Flush() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.mu.Unlock()
	s.flush()
}

// scheduleSaveLocked arms the debounced write. A mutation arriving while
// a write is pending cancels the earlier timer; only the latest write
// wins. Callers must hold s.mu.
func (s *LocalStore) scheduleSaveLocked() {
	s.gen++
	s.status = StatusSaving
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.debounce, s.flush)
}

func (s *LocalStore) flush() {
	s.mu.Lock()
	s.pending = nil
	gen := s.gen
	data, err := json.Marshal(s.txs)
	s.mu.Unlock()
	if err != nil {
		s.fail(gen, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.slot.Write(ctx, data); err != nil {
		s.fail(gen, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A newer mutation re-armed the debounce while we were writing.
		return
	}
	s.status = StatusSaved
	s.settle = time.AfterFunc(s.settleAfter, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status == StatusSaved {
			s.status = StatusIdle
		}
	})
}

func (s *LocalStore) fail(gen uint64, err error) {
	slog.Warn("Slot write failed", "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.status = StatusError
}

func (s *LocalStore) publishUpsert(ctx context.Context, t core.Transaction) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishTransactionUpserted(ctx, 0, t); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction event", "id", t.ID, "error", err)
	}
}

func (s *LocalStore) publishDelete(ctx context.Context, id int64) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishTransactionDeleted(ctx, 0, id); err != nil {
		slog.WarnContext(ctx, "Failed to publish delete event", "id", id, "error", err)
	}
}

// seedTransactions is the sample dataset an empty slot starts with.
func seedTransactions() []core.Transaction {
	mk := func(id int64, date, desc string, cents int64, typ core.TransactionType, category string) core.Transaction {
		d, _ := core.ParseDate(date)
		return core.Transaction{ID: id, Date: d, Description: desc, Amount: core.Money{Cents: cents}, Type: typ, Category: category}
	}
	return []core.Transaction{
		mk(1, "2025-02-14", "Whole Foods grocery run", 8743, core.Expense, "Food & Dining"),
		mk(2, "2025-02-14", "Uber to airport", 3420, core.Expense, "Transport"),
		mk(3, "2025-02-13", "Netflix subscription", 1599, core.Expense, "Entertainment"),
		mk(4, "2025-02-13", "Freelance payment received", 120000, core.Income, core.CategoryIncome),
		mk(5, "2025-02-12", "Monthly rent", 150000, core.Expense, "Housing"),
		mk(6, "2025-02-12", "Starbucks coffee", 675, core.Expense, "Food & Dining"),
		mk(7, "2025-02-11", "Amazon order - headphones", 7999, core.Expense, "Shopping"),
		mk(8, "2025-02-10", "Salary deposit", 320000, core.Income, core.CategoryIncome),
		mk(9, "2025-02-10", "Gym membership", 4500, core.Expense, "Health"),
		mk(10, "2025-02-09", "Gas station fill-up", 6210, core.Expense, "Transport"),
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
)

type fakeSlot struct {
	mu      sync.Mutex
	data    []byte
	writes  int
	failAll bool
}

func (f *fakeSlot) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, nil
}

func (f *fakeSlot) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("quota exceeded")
	}
	f.data = append([]byte(nil), data...)
	f.writes++
	return nil
}

func (f *fakeSlot) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func newTestStore(t *testing.T, slot *fakeSlot) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(context.Background(), slot,
		WithDebounce(time.Millisecond),
		WithSettleAfter(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return s
}

func emptySlotJSON(t *testing.T) *fakeSlot {
	t.Helper()
	data, err := json.Marshal([]core.Transaction{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &fakeSlot{data: data}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewLocalStoreSeedsEmptySlot(t *testing.T) {
	s := newTestStore(t, &fakeSlot{})
	txs := s.List(FilterAll)
	if len(txs) != 10 {
		t.Fatalf("seed size = %d, want 10", len(txs))
	}
}

func TestNewLocalStoreLoadsExisting(t *testing.T) {
	saved := []core.Transaction{{
		ID:          42,
		Date:        core.NewDate(2025, 2, 14),
		Description: "Uber to airport",
		Amount:      core.Money{Cents: 3420},
		Type:        core.Expense,
		Category:    "Transport",
	}}
	data, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := newTestStore(t, &fakeSlot{data: data})
	txs := s.List(FilterAll)
	if len(txs) != 1 || txs[0].ID != 42 {
		t.Fatalf("loaded = %+v", txs)
	}

	// IDs continue past the highest loaded one.
	added, err := s.Add(context.Background(), Candidate{Description: "coffee", Amount: "3", Type: "expense"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID != 43 {
		t.Fatalf("next id = %d, want 43", added.ID)
	}
}

func TestAddValidation(t *testing.T) {
	s := newTestStore(t, emptySlotJSON(t))
	cases := []Candidate{
		{Description: "", Amount: "1", Type: "expense"},
		{Description: "   ", Amount: "1", Type: "expense"},
		{Description: "x", Amount: "", Type: "expense"},
		{Description: "x", Amount: "abc", Type: "expense"},
		{Description: "x", Amount: "1", Type: "transfer"},
		{Description: "x", Amount: "1", Type: "expense", Date: "02/14/2025"},
		{Description: "x", Amount: "1", Type: "expense", Category: "Nonsense"},
	}
	for i, c := range cases {
		_, err := s.Add(context.Background(), c)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if got := len(s.List(FilterAll)); got != 0 {
		t.Fatalf("rejected candidates must not mutate the list, len = %d", got)
	}
}

func TestAddAssignsCategoryAndPrepends(t *testing.T) {
	s := newTestStore(t, emptySlotJSON(t))
	ctx := context.Background()

	ride, err := s.Add(ctx, Candidate{Description: "Uber ride", Amount: "34.20", Type: "expense"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ride.Category != "Transport" {
		t.Fatalf("auto category = %q, want Transport", ride.Category)
	}
	if ride.Amount.Cents != 3420 {
		t.Fatalf("amount = %d", ride.Amount.Cents)
	}

	pay, err := s.Add(ctx, Candidate{Description: "Paycheck", Amount: "1000", Type: "income"})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if pay.Category != core.CategoryIncome {
		t.Fatalf("income category = %q", pay.Category)
	}

	txs := s.List(FilterAll)
	if len(txs) != 2 || txs[0].ID != pay.ID {
		t.Fatalf("expected newest first, got %+v", txs)
	}
}

func TestExplicitCategoryIsKept(t *testing.T) {
	s := newTestStore(t, emptySlotJSON(t))
	tx, err := s.Add(context.Background(), Candidate{
		Description: "Uber ride", Amount: "10", Type: "expense", Category: "Travel",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tx.Category != "Travel" {
		t.Fatalf("category = %q, want explicit Travel", tx.Category)
	}
}

func TestRemoveRoundTrip(t *testing.T) {
	s := newTestStore(t, emptySlotJSON(t))
	ctx := context.Background()

	if _, err := s.Add(ctx, Candidate{Description: "keep", Amount: "1", Type: "expense"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := s.List(FilterAll)

	added, err := s.Add(ctx, Candidate{Description: "temp", Amount: "2", Type: "expense"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Remove(ctx, added.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	after := s.List(FilterAll)
	if len(after) != len(before) {
		t.Fatalf("round trip changed list size: %d != %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Fatalf("round trip changed content at %d", i)
		}
	}

	if err := s.Remove(ctx, added.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: got %v, want ErrNotFound", err)
	}
}

func TestListFiltersAndSortsDateDescending(t *testing.T) {
	s := newTestStore(t, emptySlotJSON(t))
	ctx := context.Background()
	add := func(date, desc, cat string) {
		t.Helper()
		if _, err := s.Add(ctx, Candidate{Date: date, Description: desc, Amount: "1", Type: "expense", Category: cat}); err != nil {
			t.Fatalf("add %s: %v", desc, err)
		}
	}
	add("2025-02-10", "old other", "Other")
	add("2025-02-14", "new travel", "Travel")
	add("2025-02-12", "mid other", "Other")

	all := s.List(FilterAll)
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].Description != "new travel" || all[1].Description != "mid other" || all[2].Description != "old other" {
		t.Fatalf("order wrong: %v %v %v", all[0].Description, all[1].Description, all[2].Description)
	}

	other := s.List("Other")
	if len(other) != 2 || other[0].Description != "mid other" {
		t.Fatalf("filtered = %+v", other)
	}
}

func TestDebouncedSaveStatus(t *testing.T) {
	slot := emptySlotJSON(t)
	s, err := NewLocalStore(context.Background(), slot,
		WithDebounce(50*time.Millisecond),
		WithSettleAfter(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if s.Status() != StatusIdle {
		t.Fatalf("initial status = %v", s.Status())
	}

	if _, err := s.Add(ctx, Candidate{Description: "a", Amount: "1", Type: "expense"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// The write hasn't fired yet; the mutation alone puts us in saving.
	if st := s.Status(); st != StatusSaving {
		t.Fatalf("status after mutation = %v, want saving", st)
	}

	waitFor(t, func() bool { return s.Status() == StatusSaved || s.Status() == StatusIdle },
		"debounced write never reported saved")
	if slot.writeCount() == 0 {
		t.Fatal("no slot write happened")
	}
	waitFor(t, func() bool { return s.Status() == StatusIdle }, "saved status never settled back to idle")
}

func TestDebounceCoalescesRapidMutations(t *testing.T) {
	slot := emptySlotJSON(t)
	s, err := NewLocalStore(context.Background(), slot,
		WithDebounce(50*time.Millisecond),
		WithSettleAfter(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Add(ctx, Candidate{Description: "burst", Amount: "1", Type: "expense"}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	waitFor(t, func() bool { return slot.writeCount() > 0 }, "no write after burst")
	// Later mutations cancel earlier pending writes, so one write carries
	// the whole burst.
	if n := slot.writeCount(); n != 1 {
		t.Fatalf("writes = %d, want 1", n)
	}
	var persisted []core.Transaction
	if err := json.Unmarshal(slot.data, &persisted); err != nil {
		t.Fatalf("unmarshal persisted: %v", err)
	}
	if len(persisted) != 5 {
		t.Fatalf("persisted %d transactions, want 5", len(persisted))
	}
}

func TestWriteFailureReportsErrorButKeepsList(t *testing.T) {
	slot := emptySlotJSON(t)
	slot.failAll = true
	s := newTestStore(t, slot)
	ctx := context.Background()

	if _, err := s.Add(ctx, Candidate{Description: "a", Amount: "1", Type: "expense"}); err != nil {
		t.Fatalf("add should succeed despite failing slot: %v", err)
	}
	waitFor(t, func() bool { return s.Status() == StatusError }, "status never reached error")
	if got := len(s.List(FilterAll)); got != 1 {
		t.Fatalf("in-memory list must survive a failed write, len = %d", got)
	}
}

func TestFlushWritesPendingMutations(t *testing.T) {
	slot := emptySlotJSON(t)
	s, err := NewLocalStore(context.Background(), slot, WithDebounce(time.Hour))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Add(context.Background(), Candidate{Description: "a", Amount: "1", Type: "expense"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Flush()
	if slot.writeCount() != 1 {
		t.Fatalf("flush writes = %d, want 1", slot.writeCount())
	}
}

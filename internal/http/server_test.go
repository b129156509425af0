package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

type memSlot struct {
	mu   sync.Mutex
	data []byte
}

func (m *memSlot) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSlot) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newLocalTestServer(t *testing.T) (*Server, *store.LocalStore) {
	t.Helper()
	local, err := store.NewLocalStore(context.Background(), &memSlot{},
		store.WithDebounce(time.Hour))
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	srv, err := NewLocalServer(local, testLogger())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv, local
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestListTransactionsReturnsSeeds(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/transactions", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	txs := decodeBody[[]core.Transaction](t, rec)
	if len(txs) != 10 {
		t.Fatalf("seed list has %d transactions, want 10", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.After(txs[i-1].Date.Time) {
			t.Fatalf("list not sorted date descending at index %d", i)
		}
	}
}

func TestListTransactionsCategoryFilter(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/transactions?category=Transport", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	txs := decodeBody[[]core.Transaction](t, rec)
	for _, tx := range txs {
		if tx.Category != "Transport" {
			t.Fatalf("filtered list contains %q", tx.Category)
		}
	}
	if len(txs) != 2 {
		t.Fatalf("transport seeds = %d, want 2", len(txs))
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/transactions?category=Nonsense", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d, want 400", rec.Code)
	}
}

func TestAddTransaction(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/transactions", store.Candidate{
		Description: "Starbucks downtown",
		Amount:      "6.75",
		Type:        "expense",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	added := decodeBody[core.Transaction](t, rec)
	if added.Category != "Food & Dining" {
		t.Fatalf("auto category = %q, want Food & Dining", added.Category)
	}
	if added.Amount.Cents != 675 {
		t.Fatalf("amount = %d cents, want 675", added.Amount.Cents)
	}
	if added.ID == 0 {
		t.Fatal("added transaction has no id")
	}
}

func TestAddTransactionValidation(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	tests := []struct {
		name      string
		candidate store.Candidate
	}{
		{"empty description", store.Candidate{Amount: "5", Type: "expense"}},
		{"bad amount", store.Candidate{Description: "x", Amount: "abc", Type: "expense"}},
		{"bad type", store.Candidate{Description: "x", Amount: "5", Type: "loan"}},
		{"bad date", store.Candidate{Description: "x", Amount: "5", Type: "expense", Date: "02/14/2025"}},
		{"unknown category", store.Candidate{Description: "x", Amount: "5", Type: "expense", Category: "Pets"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/transactions", tt.candidate, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestRemoveTransaction(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/api/transactions/3", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/api/transactions/3", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/api/transactions/abc", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}
}

func TestStatsReflectsMutations(t *testing.T) {
	srv, local := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/stats", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	before := decodeBody[core.Stats](t, rec)
	if before.Balance.Cents != before.Income.Cents-before.Expenses.Cents {
		t.Fatalf("balance %d != income %d - expenses %d",
			before.Balance.Cents, before.Income.Cents, before.Expenses.Cents)
	}

	// Second read comes from cache and must match.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/stats", nil, "")
	cached := decodeBody[core.Stats](t, rec)
	if cached.Income.Cents != before.Income.Cents || cached.Expenses.Cents != before.Expenses.Cents {
		t.Fatalf("cached stats differ: %+v vs %+v", cached, before)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/transactions", store.Candidate{
		Description: "Concert ticket",
		Amount:      "120",
		Type:        "expense",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/stats", nil, "")
	after := decodeBody[core.Stats](t, rec)
	if after.Expenses.Cents != before.Expenses.Cents+12000 {
		t.Fatalf("expenses after add = %d, want %d", after.Expenses.Cents, before.Expenses.Cents+12000)
	}

	want := core.Aggregate(local.List(store.FilterAll), core.Today())
	if after.Balance.Cents != want.Balance.Cents {
		t.Fatalf("stats balance = %d, want %d", after.Balance.Cents, want.Balance.Cents)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/categories", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cats := decodeBody[[]core.Rule](t, rec)
	if len(cats) != 10 {
		t.Fatalf("categories = %d, want 10", len(cats))
	}
	if cats[0].Label != "Food & Dining" || cats[len(cats)-1].Label != core.CategoryOther {
		t.Fatalf("category order wrong: first %q last %q", cats[0].Label, cats[len(cats)-1].Label)
	}
}

func TestSaveStatusEndpoint(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/save-status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[saveStatusResponse](t, rec)
	if body.Status != "idle" {
		t.Fatalf("fresh store status = %q, want idle", body.Status)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/transactions", store.Candidate{
		Description: "Pharmacy", Amount: "12.50", Type: "expense",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/save-status", nil, "")
	body = decodeBody[saveStatusResponse](t, rec)
	if body.Status != "saving" {
		t.Fatalf("status after mutation = %q, want saving", body.Status)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestMutationRateLimit(t *testing.T) {
	srv, _ := newLocalTestServer(t)

	var limited bool
	for i := 0; i < mutationRateLimit+5; i++ {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/transactions", store.Candidate{
			Description: "Coffee " + strconv.Itoa(i),
			Amount:      "3",
			Type:        "expense",
		}, "")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("mutation endpoint never rate limited")
	}

	// Reads are not limited.
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/transactions", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read after limit = %d, want 200", rec.Code)
	}
}

// Package store holds the session transaction list and its two
// interchangeable persistence strategies: a debounced local slot and a
// per-user remote collection.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"fintrack/internal/core"
)

// FilterAll disables category filtering in List.
const FilterAll = "All"

var ErrNotFound = errors.New("transaction not found")

// ValidationError marks user input rejected before any mutation happened.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Store is the contract shared by both persistence variants. List always
// reflects the latest successful mutation; Add prepends most-recent-first
// and Remove drops from memory and the durable collaborator.
type Store interface {
	List(category string) []core.Transaction
	Add(ctx context.Context, c Candidate) (core.Transaction, error)
	Remove(ctx context.Context, id int64) error
}

// Publisher receives mutation events after a successful add or remove.
// Publishing is best effort; failures never fail the mutation.
type Publisher interface {
	PublishTransactionUpserted(ctx context.Context, ownerID int64, t core.Transaction) error
	PublishTransactionDeleted(ctx context.Context, ownerID, id int64) error
}

// Candidate is raw user input for a new transaction, before validation
// and category assignment.
type Candidate struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
}

// build turns a candidate into a validated transaction without an ID.
// The category is derived from the description when the caller left it
// unset; income candidates always land in the Income category.
func (c Candidate) build(today core.Date) (core.Transaction, error) {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		return core.Transaction{}, &ValidationError{Field: "description", Err: core.ErrEmptyDescription}
	}

	cents, err := core.ParseDecimalToCents(c.Amount)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}

	typ := core.TransactionType(strings.TrimSpace(c.Type))
	if err := typ.Validate(); err != nil {
		return core.Transaction{}, &ValidationError{Field: "type", Err: core.ErrInvalidType}
	}

	date := today
	if strings.TrimSpace(c.Date) != "" {
		date, err = core.ParseDate(c.Date)
		if err != nil {
			return core.Transaction{}, &ValidationError{Field: "date", Err: core.ErrInvalidDate}
		}
	}

	category := strings.TrimSpace(c.Category)
	switch {
	case typ == core.Income:
		category = core.CategoryIncome
	case category == "":
		category = core.Categorize(desc, typ)
	case !core.IsCategory(category):
		return core.Transaction{}, &ValidationError{Field: "category", Err: core.ErrUnknownCategory}
	}

	t := core.Transaction{
		Date:        date,
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Category:    category,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, &ValidationError{Field: "transaction", Err: err}
	}
	return t, nil
}

// filterSorted returns the transactions matching the category filter,
// date descending. Ties keep slice order, which is arrival order.
func filterSorted(txs []core.Transaction, category string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if category == "" || category == FilterAll || t.Category == category {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date.Time)
	})
	return out
}

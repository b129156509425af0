package core

type (
	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
	}

	// DayActivity is the income/expense activity of one calendar day.
	DayActivity struct {
		Date   Date   `json:"date"`
		Label  string `json:"label"` // abbreviated weekday, e.g. "Mon"
		Spent  Money  `json:"spent"`
		Earned Money  `json:"earned"`
	}

	// Stats is the dashboard summary derived from a transaction snapshot.
	Stats struct {
		Income     Money            `json:"income"`
		Expenses   Money            `json:"expenses"`
		Balance    Money            `json:"balance"` // signed, may be negative
		ByCategory []CategoryAmount `json:"byCategory"`
		Days       [7]DayActivity   `json:"trailing7Days"` // oldest first, ending today
	}
)

// Aggregate derives dashboard statistics from a snapshot of the
// transaction collection. today anchors the trailing 7-day window, which
// covers the calendar days from today-6 through today inclusive.
//
// ByCategory sums expense amounts only; categories with no expense
// transactions are omitted and the remaining groups follow category table
// order. All accumulation is exact cents arithmetic; recomputed from
// scratch on every call, no incremental state.
func Aggregate(txs []Transaction, today Date) Stats {
	var s Stats
	byCat := make(map[string]int64)
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.Income.Cents += t.Amount.Cents
		case Expense:
			s.Expenses.Cents += t.Amount.Cents
			byCat[t.Category] += t.Amount.Cents
		}
	}
	s.Balance.Cents = s.Income.Cents - s.Expenses.Cents

	for _, r := range rules {
		if cents, ok := byCat[r.Label]; ok && cents != 0 {
			s.ByCategory = append(s.ByCategory, CategoryAmount{
				Name:   r.Label,
				Amount: Money{Cents: cents},
			})
		}
	}

	for i := 0; i < 7; i++ {
		day := Date{Time: today.AddDate(0, 0, i-6)}
		activity := DayActivity{
			Date:  day,
			Label: day.Format("Mon"),
		}
		key := day.Key()
		for _, t := range txs {
			if t.Date.Key() != key {
				continue
			}
			switch t.Type {
			case Income:
				activity.Earned.Cents += t.Amount.Cents
			case Expense:
				activity.Spent.Cents += t.Amount.Cents
			}
		}
		s.Days[i] = activity
	}

	return s
}

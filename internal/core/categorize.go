package core

import "strings"

// Categorize assigns a category label to a transaction description.
//
// Income transactions always land in the reserved Income category and the
// description is never inspected. For expenses, the lower-cased description
// is scanned against each rule's keywords in table order (skipping Income
// and Other); the first rule with a matching substring wins. Matching is
// substring-based, not tokenized, so "Eating out" matches the keyword
// "eat". When nothing matches, Other is returned.
//
// Pure and total: never fails, no side effects.
func Categorize(description string, t TransactionType) string {
	if t == Income {
		return CategoryIncome
	}
	desc := strings.ToLower(description)
	for _, r := range rules {
		if r.Label == CategoryIncome || r.Label == CategoryOther {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(desc, kw) {
				return r.Label
			}
		}
	}
	return CategoryOther
}

package core

// Rule is one entry of the fixed category table: a label, a display
// color and the lowercase keyword substrings that match it.
type Rule struct {
	Label    string   `json:"label"`
	Color    string   `json:"color"`
	Keywords []string `json:"-"`
}

const (
	// CategoryIncome is reserved: it is assigned by transaction type
	// alone and never by keyword.
	CategoryIncome = "Income"
	// CategoryOther is the fallback when no keyword set matches.
	CategoryOther = "Other"
)

// rules is the fixed, ordered category table, loaded once at process
// start and immutable afterwards. Declaration order decides which
// category wins when several keyword sets match a description.
var rules = []Rule{
	{Label: "Food & Dining", Color: "#F97316", Keywords: []string{
		"restaurant", "cafe", "coffee", "pizza", "burger", "sushi", "lunch",
		"dinner", "breakfast", "food", "eat", "doordash", "ubereats", "grubhub",
		"mcdonald", "starbucks", "subway", "chipotle", "taco", "bar", "pub",
		"drink", "beer", "wine", "grocery", "supermarket", "whole foods",
		"trader joe", "kroger", "walmart", "costco",
	}},
	{Label: "Transport", Color: "#3B82F6", Keywords: []string{
		"uber", "lyft", "taxi", "gas", "fuel", "parking", "toll", "metro",
		"bus", "train", "flight", "airline", "car", "auto", "mechanic",
		"insurance", "registration",
	}},
	{Label: "Housing", Color: "#8B5CF6", Keywords: []string{
		"rent", "mortgage", "electric", "electricity", "water", "gas bill",
		"internet", "wifi", "cable", "phone", "utilities", "hoa",
		"maintenance", "repair", "plumber", "cleaner",
	}},
	{Label: "Shopping", Color: "#EC4899", Keywords: []string{
		"amazon", "ebay", "shop", "store", "mall", "clothes", "clothing",
		"fashion", "shoes", "apparel", "target", "h&m", "zara", "nike",
		"adidas", "apple", "best buy", "ikea",
	}},
	{Label: "Health", Color: "#10B981", Keywords: []string{
		"doctor", "hospital", "pharmacy", "medicine", "drug", "dental",
		"dentist", "vision", "gym", "fitness", "yoga", "health", "medical",
		"prescription", "cvs", "walgreens",
	}},
	{Label: "Entertainment", Color: "#F59E0B", Keywords: []string{
		"netflix", "spotify", "hulu", "disney", "movie", "cinema", "concert",
		"ticket", "game", "steam", "playstation", "xbox", "hobby", "book",
		"music", "streaming",
	}},
	{Label: "Travel", Color: "#06B6D4", Keywords: []string{
		"hotel", "airbnb", "vrbo", "resort", "vacation", "travel", "trip",
		"tour", "booking", "expedia", "kayak", "luggage",
	}},
	{Label: "Education", Color: "#6366F1", Keywords: []string{
		"school", "university", "college", "course", "tuition", "textbook",
		"udemy", "coursera", "learning", "class", "workshop",
	}},
	// The Income keyword set documents what the category covers; the
	// categorizer never scans it.
	{Label: CategoryIncome, Color: "#22C55E", Keywords: []string{
		"salary", "paycheck", "freelance", "payment received", "deposit",
		"refund", "transfer in", "income", "revenue", "dividend", "interest",
	}},
	{Label: CategoryOther, Color: "#94A3B8"},
}

var ruleIndex = func() map[string]int {
	idx := make(map[string]int, len(rules))
	for i, r := range rules {
		idx[r.Label] = i
	}
	return idx
}()

// Rules returns the category table in declaration order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// IsCategory reports whether label is a key of the category table.
func IsCategory(label string) bool {
	_, ok := ruleIndex[label]
	return ok
}

// CategoryColor returns the display color for a label, falling back to
// the Other color for unknown labels.
func CategoryColor(label string) string {
	if i, ok := ruleIndex[label]; ok {
		return rules[i].Color
	}
	return rules[ruleIndex[CategoryOther]].Color
}

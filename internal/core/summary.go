package core

// CategoryTotal is an expense total aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    Money
}

// MonthFlow is the income/expense pair for one calendar month.
type MonthFlow struct {
	Month   string // YYYY-MM
	Income  Money
	Expense Money
}

// Summary is the derived read-only view over a user's ledger, optionally
// filtered to one month. It is recomputed on every read, never stored.
type Summary struct {
	Income  Money
	Expense Money
	Balance Money
	// Categories holds expense-only totals ordered total descending,
	// ties broken by category name ascending.
	Categories []CategoryTotal
	// Trend holds up to the six most recent months with data, oldest
	// first, regardless of any month filter.
	Trend []MonthFlow
}

// TopCategory returns the largest expense category, if any.
func (s Summary) TopCategory() (CategoryTotal, bool) {
	if len(s.Categories) == 0 {
		return CategoryTotal{}, false
	}
	return s.Categories[0], true
}

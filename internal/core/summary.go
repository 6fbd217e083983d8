package core

// Summary aggregates the amounts of one user. Expenses stays negative, so
// Balance always equals Income + Expenses.
type Summary struct {
	Balance  Money `json:"balance"`
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
}

// Add folds one amount into the summary.
func (s Summary) Add(m Money) Summary {
	s.Balance.Cents += m.Cents
	switch {
	case m.Cents > 0:
		s.Income.Cents += m.Cents
	case m.Cents < 0:
		s.Expenses.Cents += m.Cents
	}
	return s
}

// Consistent reports whether balance equals income plus expenses.
func (s Summary) Consistent() bool {
	return s.Balance.Cents == s.Income.Cents+s.Expenses.Cents
}

package models

// IncomeExpenseStats represents monthly income and expense statistics
type IncomeExpenseStats struct {
	Income     float64 `json:"income"`
	Expense    float64 `json:"expense"`
	NetBalance float64 `json:"net_balance"`
}

// CategorySpending represents total spending for one category
type CategorySpending struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

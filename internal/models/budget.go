package models

// Budget represents a monthly spending limit for one category
type Budget struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	Category     string  `json:"category"`
	MonthlyLimit float64 `json:"monthly_limit"`
	CreatedAt    string  `json:"created_at"`
}

// BudgetStatus pairs a budget with the amount spent in the current month
type BudgetStatus struct {
	Budget    Budget  `json:"budget"`
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
}

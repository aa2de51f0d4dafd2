package models

import "github.com/finflow/budget-service/internal/ai"

// FinancialAnalysis is a stored AI analysis result for a user
type FinancialAnalysis struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Prompt    string            `json:"prompt"`
	Record    ai.AnalysisRecord `json:"record"`
	CreatedAt string            `json:"created_at"`
}

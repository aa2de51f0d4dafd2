package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/finflow/budget-service/internal/models"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO budget.users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM budget.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by ID
func (r *Repository) FindUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, created_at
		FROM budget.users
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all users (used by the monthly report job)
func (r *Repository) ListUsers() ([]models.User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM budget.users
		ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateAccount creates a new account in the database
func (r *Repository) CreateAccount(account *models.Account) error {
	query := `
		INSERT INTO budget.accounts (user_id, name, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(query, account.UserID, account.Name, account.Balance, account.Currency).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// FindAccountOwner returns the owning user ID for an account
func (r *Repository) FindAccountOwner(accountID int64) (int64, error) {
	var userID int64
	query := `SELECT user_id FROM budget.accounts WHERE id = $1`
	err := r.db.QueryRow(query, accountID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("account not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find account: %w", err)
	}
	return userID, nil
}

// ListAccounts retrieves all accounts for a user
func (r *Repository) ListAccounts(userID int64) ([]models.Account, error) {
	query := `
		SELECT id, user_id, name, balance, currency, created_at, updated_at
		FROM budget.accounts
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateBudget creates a new category budget
func (r *Repository) CreateBudget(budget *models.Budget) error {
	query := `
		INSERT INTO budget.budgets (user_id, category, monthly_limit, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, budget.UserID, budget.Category, budget.MonthlyLimit).
		Scan(&budget.ID, &budget.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

// ListBudgets retrieves all budgets for a user
func (r *Repository) ListBudgets(userID int64) ([]models.Budget, error) {
	query := `
		SELECT id, user_id, category, monthly_limit, created_at
		FROM budget.budgets
		WHERE user_id = $1
		ORDER BY category`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.MonthlyLimit, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// SpentByCategory returns the amount spent in a category by a user during
// the current calendar month
func (r *Repository) SpentByCategory(userID int64, category string) (float64, error) {
	var spent float64
	query := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM budget.transactions t
		JOIN budget.accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		  AND t.category = $2
		  AND t.type = 'expense'
		  AND date_trunc('month', t.created_at) = date_trunc('month', CURRENT_TIMESTAMP)`
	if err := r.db.QueryRow(query, userID, category).Scan(&spent); err != nil {
		return 0, fmt.Errorf("failed to compute spent amount: %w", err)
	}
	return spent, nil
}

// CreateTransaction inserts a transaction and adjusts the account balance
// atomically
func (r *Repository) CreateTransaction(t *models.Transaction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO budget.transactions (account_id, amount, type, category, description, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err = tx.QueryRow(query, t.AccountID, t.Amount, t.Type, t.Category, t.Description).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	delta := t.Amount
	if t.Type == "expense" {
		delta = -t.Amount
	}
	_, err = tx.Exec(`
		UPDATE budget.accounts
		SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`, delta, t.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	return tx.Commit()
}

// ListTransactions retrieves transactions for an account
func (r *Repository) ListTransactions(accountID int64) ([]models.Transaction, error) {
	query := `
		SELECT id, account_id, amount, type, category, description, created_at
		FROM budget.transactions
		WHERE account_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Category, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// RecentTransactions retrieves the latest transactions across all of a
// user's accounts, newest first
func (r *Repository) RecentTransactions(userID int64, limit int) ([]models.Transaction, error) {
	query := `
		SELECT t.id, t.account_id, t.amount, t.type, t.category, t.description, t.created_at
		FROM budget.transactions t
		JOIN budget.accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Category, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// MonthlyStats computes income and expense totals for the current month
func (r *Repository) MonthlyStats(userID int64) (*models.IncomeExpenseStats, error) {
	stats := &models.IncomeExpenseStats{}
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount ELSE 0 END), 0)
		FROM budget.transactions t
		JOIN budget.accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		  AND date_trunc('month', t.created_at) = date_trunc('month', CURRENT_TIMESTAMP)`
	if err := r.db.QueryRow(query, userID).Scan(&stats.Income, &stats.Expense); err != nil {
		return nil, fmt.Errorf("failed to compute monthly stats: %w", err)
	}
	stats.NetBalance = stats.Income - stats.Expense
	return stats, nil
}

// CreateAnalysis stores a completed financial analysis
func (r *Repository) CreateAnalysis(analysis *models.FinancialAnalysis) error {
	record, err := json.Marshal(analysis.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis record: %w", err)
	}

	query := `
		INSERT INTO budget.analyses (user_id, prompt, record, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err = r.db.QueryRow(query, analysis.UserID, analysis.Prompt, record).
		Scan(&analysis.ID, &analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// ListAnalyses retrieves stored analyses for a user, newest first
func (r *Repository) ListAnalyses(userID int64) ([]models.FinancialAnalysis, error) {
	query := `
		SELECT id, user_id, prompt, record, created_at
		FROM budget.analyses
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.FinancialAnalysis
	for rows.Next() {
		var a models.FinancialAnalysis
		var record []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Prompt, &record, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		if err := json.Unmarshal(record, &a.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis record: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

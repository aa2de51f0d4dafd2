package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finflow/budget-service/internal/ai"
	"github.com/finflow/budget-service/internal/config"
	"github.com/finflow/budget-service/internal/integrations/cbr"
	"github.com/finflow/budget-service/internal/models"
	"github.com/finflow/budget-service/internal/repository"
	"github.com/finflow/budget-service/internal/utils/email"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// promptTransactionLimit caps how many recent transactions are included in
// an analysis prompt.
const promptTransactionLimit = 50

// Service handles business logic
type Service struct {
	repo      *repository.Repository
	log       *logrus.Logger
	config    *config.Config
	source    ai.TextSource
	extractor *ai.Extractor
	streamer  *ai.StreamExtractor
	mailer    *email.Sender
	rates     *cbr.Client
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config,
	source ai.TextSource, mailer *email.Sender, rates *cbr.Client) *Service {
	return &Service{
		repo:      repo,
		log:       log,
		config:    cfg,
		source:    source,
		extractor: ai.NewExtractor(ai.DefaultFieldSpecs()),
		streamer:  ai.NewStreamExtractor(source, ai.DefaultKeywords(), log),
		mailer:    mailer,
		rates:     rates,
	}
}

// Register creates a new user with hashed password
func (s *Service) Register(username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// CreateAccount creates a new account for the authenticated user
func (s *Service) CreateAccount(ctx context.Context, name, currency string) (*models.Account, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		UserID:   userID,
		Name:     name,
		Balance:  0.0,
		Currency: currency,
	}

	if err := s.repo.CreateAccount(account); err != nil {
		return nil, err
	}

	s.log.Infof("Account created for user %d: %s", userID, account.Name)
	return account, nil
}

// ListAccounts returns the authenticated user's accounts
func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(userID)
}

// CreateBudget creates a monthly spending limit for a category
func (s *Service) CreateBudget(ctx context.Context, category string, monthlyLimit float64) (*models.Budget, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	if monthlyLimit <= 0 {
		return nil, fmt.Errorf("monthly limit must be positive")
	}

	budget := &models.Budget{
		UserID:       userID,
		Category:     category,
		MonthlyLimit: monthlyLimit,
	}

	if err := s.repo.CreateBudget(budget); err != nil {
		return nil, err
	}

	s.log.Infof("Budget created for user %d: %s %.2f", userID, category, monthlyLimit)
	return budget, nil
}

// ListBudgets returns the user's budgets with current-month spending
func (s *Service) ListBudgets(ctx context.Context) ([]models.BudgetStatus, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	budgets, err := s.repo.ListBudgets(userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.repo.SpentByCategory(userID, b.Category)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, models.BudgetStatus{
			Budget:    b,
			Spent:     spent,
			Remaining: b.MonthlyLimit - spent,
		})
	}
	return statuses, nil
}

// CreateTransaction records a transaction on one of the user's accounts and
// sends a budget alert when a category limit is exceeded
func (s *Service) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if t.Type != "income" && t.Type != "expense" {
		return nil, fmt.Errorf("transaction type must be income or expense")
	}
	if t.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	ownerID, err := s.repo.FindAccountOwner(t.AccountID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, fmt.Errorf("account does not belong to user")
	}

	if err := s.repo.CreateTransaction(t); err != nil {
		return nil, err
	}
	s.log.Infof("Transaction created on account %d: %s %.2f", t.AccountID, t.Type, t.Amount)

	if t.Type == "expense" && t.Category != "" {
		s.checkBudget(userID, t.Category)
	}

	return t, nil
}

// checkBudget alerts the user by email when the month's spending in a
// category passes its budget. Alert failures are logged, never surfaced.
func (s *Service) checkBudget(userID int64, category string) {
	budgets, err := s.repo.ListBudgets(userID)
	if err != nil {
		s.log.Errorf("Failed to check budgets for user %d: %v", userID, err)
		return
	}

	for _, b := range budgets {
		if b.Category != category {
			continue
		}
		spent, err := s.repo.SpentByCategory(userID, category)
		if err != nil {
			s.log.Errorf("Failed to compute spending for user %d: %v", userID, err)
			return
		}
		if spent <= b.MonthlyLimit {
			return
		}
		user, err := s.repo.FindUserByID(userID)
		if err != nil {
			s.log.Errorf("Failed to load user %d for budget alert: %v", userID, err)
			return
		}
		if err := s.mailer.SendBudgetAlert(user.Email, user.Username, category, spent, b.MonthlyLimit); err != nil {
			s.log.Errorf("Failed to send budget alert to %s: %v", user.Email, err)
		}
		return
	}
}

// ListTransactions returns transactions for one of the user's accounts
func (s *Service) ListTransactions(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.repo.FindAccountOwner(accountID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, fmt.Errorf("account does not belong to user")
	}

	return s.repo.ListTransactions(accountID)
}

// MonthlyStats returns the current month's income and expense totals
func (s *Service) MonthlyStats(ctx context.Context) (*models.IncomeExpenseStats, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.MonthlyStats(userID)
}

// Analyze runs a full financial analysis of the user's recent transactions
// and stores the result
func (s *Service) Analyze(ctx context.Context, question string) (*models.FinancialAnalysis, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	transactions, err := s.repo.RecentTransactions(userID, promptTransactionLimit)
	if err != nil {
		return nil, err
	}
	prompt := buildAnalysisPrompt(question, transactions)

	blob, err := s.source.FetchOnce(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	record, err := s.extractor.Extract(blob)
	if err != nil {
		return nil, err
	}

	analysis := &models.FinancialAnalysis{
		UserID: userID,
		Prompt: question,
		Record: record,
	}
	if err := s.repo.CreateAnalysis(analysis); err != nil {
		return nil, err
	}

	s.log.Infof("Analysis stored for user %d", userID)
	return analysis, nil
}

// AnalyzeStream streams analysis fragments for a free-form prompt. Prompt
// validation and keyword gating happen inside the stream extractor.
func (s *Service) AnalyzeStream(ctx context.Context, prompt string) <-chan ai.Fragment {
	return s.streamer.Stream(ctx, prompt)
}

// ListAnalyses returns the user's stored analyses
func (s *Service) ListAnalyses(ctx context.Context) ([]models.FinancialAnalysis, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAnalyses(userID)
}

// SendMonthlyReports emails every user their monthly summary with an AI
// analysis. Per-user failures are logged and skipped.
func (s *Service) SendMonthlyReports(ctx context.Context) {
	users, err := s.repo.ListUsers()
	if err != nil {
		s.log.Errorf("Failed to list users for monthly reports: %v", err)
		return
	}

	keyRate, err := s.rates.KeyRate(ctx)
	if err != nil {
		s.log.Warnf("Failed to fetch key rate, reports continue without it: %v", err)
	}

	for _, user := range users {
		stats, err := s.repo.MonthlyStats(user.ID)
		if err != nil {
			s.log.Errorf("Failed to compute stats for user %d: %v", user.ID, err)
			continue
		}

		transactions, err := s.repo.RecentTransactions(user.ID, promptTransactionLimit)
		if err != nil {
			s.log.Errorf("Failed to load transactions for user %d: %v", user.ID, err)
			continue
		}

		record := ai.AnalysisRecord{}
		blob, err := s.source.FetchOnce(ctx, buildAnalysisPrompt("Summarize this month's finances", transactions))
		if err != nil {
			s.log.Errorf("Analysis request failed for user %d: %v", user.ID, err)
		} else if record, err = s.extractor.Extract(blob); err != nil {
			s.log.Errorf("Analysis extraction failed for user %d: %v", user.ID, err)
		}

		if err := s.mailer.SendMonthlyReport(user.Email, user.Username, stats, record, keyRate); err != nil {
			s.log.Errorf("Failed to send report to %s: %v", user.Email, err)
			continue
		}
		s.log.Infof("Monthly report sent to %s", user.Email)
	}
}

// buildAnalysisPrompt combines the user's question with their recent
// transaction history and the required response shape
func buildAnalysisPrompt(question string, transactions []models.Transaction) string {
	var b strings.Builder
	b.WriteString("You are a personal budgeting assistant. Analyze the following transactions and spending history.\n")
	if question != "" {
		b.WriteString("User question: ")
		b.WriteString(question)
		b.WriteString("\n")
	}
	b.WriteString("Transactions:\n")
	for _, t := range transactions {
		fmt.Fprintf(&b, "- %s %s %.2f (%s) %s\n", t.CreatedAt, t.Type, t.Amount, t.Category, t.Description)
	}
	b.WriteString("\nRespond with a single JSON object containing exactly these string fields: " +
		"overview, spendingTrends, categoryAnalysis, anomaliesOrRedFlags, timeBasedInsights, " +
		"recommendations, riskAssessment, opportunities, futureProjections, comparativeAnalysis, disclaimer.")
	return b.String()
}

func userIDFromContext(ctx context.Context) (int64, error) {
	userIDStr, ok := ctx.Value("userID").(string)
	if !ok || userIDStr == "" {
		return 0, fmt.Errorf("user ID not found in context")
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %w", err)
	}
	return userID, nil
}

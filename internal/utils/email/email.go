package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/finflow/budget-service/internal/ai"
	"github.com/finflow/budget-service/internal/config"
	"github.com/finflow/budget-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendBudgetAlert notifies a user that a category budget has been exceeded
func (s *Sender) SendBudgetAlert(to, username, category string, spent, limit float64) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Budget Exceeded: %s", category)

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your spending in the %q category has reached %.2f, exceeding your monthly limit of %.2f.\n"+
			"Consider reviewing your recent transactions in this category.\n"+
			"\nBest regards,\nBudget Service",
		username, category, spent, limit,
	)
	e.Text = []byte(body)

	return s.send(e)
}

// SendMonthlyReport delivers the monthly summary with the AI analysis
func (s *Sender) SendMonthlyReport(to, username string, stats *models.IncomeExpenseStats, record ai.AnalysisRecord, keyRate float64) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Monthly Financial Report — %s", time.Now().Format("January 2006"))

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Here is your monthly financial summary:\n"+
			"  Income:  %.2f\n"+
			"  Expense: %.2f\n"+
			"  Net:     %.2f\n"+
			"  Current savings benchmark rate: %.2f%%\n\n"+
			"Overview: %s\n\n"+
			"Spending trends: %s\n\n"+
			"Recommendations: %s\n\n"+
			"%s\n"+
			"\nBest regards,\nBudget Service",
		username, stats.Income, stats.Expense, stats.NetBalance, keyRate,
		record.Overview, record.SpendingTrends, record.Recommendations, record.Disclaimer,
	)
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}

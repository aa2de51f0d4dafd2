package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/finflow/budget-service/internal/config"
	"github.com/finflow/budget-service/internal/handler"
	"github.com/finflow/budget-service/internal/integrations/cbr"
	"github.com/finflow/budget-service/internal/integrations/gemini"
	"github.com/finflow/budget-service/internal/middleware"
	"github.com/finflow/budget-service/internal/repository"
	"github.com/finflow/budget-service/internal/service"
	"github.com/finflow/budget-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	geminiClient := gemini.NewClient(cfg, logger)
	cbrClient := cbr.NewClient(cfg, logger)
	mailer := email.NewSender(cfg, logger)
	svc := service.NewService(repo, logger, cfg, geminiClient, mailer, cbrClient)
	h := handler.NewHandler(svc)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Savings benchmark rate endpoint
	r.HandleFunc("/savings-rate", func(w http.ResponseWriter, r *http.Request) {
		rate, err := cbrClient.KeyRate(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get key rate: %v", err), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"key_rate": rate})
	}).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	authRouter.HandleFunc("/budgets", h.CreateBudget).Methods("POST")
	authRouter.HandleFunc("/budgets", h.ListBudgets).Methods("GET")
	authRouter.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	authRouter.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	authRouter.HandleFunc("/stats/monthly", h.MonthlyStats).Methods("GET")
	authRouter.HandleFunc("/analyze", h.Analyze).Methods("POST")
	authRouter.HandleFunc("/analyze/stream", h.AnalyzeStream).Methods("GET")
	authRouter.HandleFunc("/analyses", h.ListAnalyses).Methods("GET")

	// Schedule monthly reports
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReportCron, func() {
		svc.SendMonthlyReports(context.Background())
	}); err != nil {
		logger.Fatalf("Failed to schedule monthly reports: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // Long enough for streamed analyses
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "xapobank-backend/internal/api/http"
	"xapobank-backend/internal/config"
	"xapobank-backend/internal/jobs"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/realtime"
	"xapobank-backend/internal/repository/postgres"
	"xapobank-backend/internal/scheduler"
	"xapobank-backend/internal/security"
	"xapobank-backend/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Xapo Bank Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)

	// Realtime hub lives and dies with the server process.
	hub := realtime.NewHub(tokenManager)

	// Initialize Services
	emailSvc := service.NewEmailService(cfg.Email)
	notifier := service.NewNotifier(emailSvc)
	whatsappSvc := service.NewWhatsAppService(cfg.WhatsApp)
	promoSvc := service.NewPromoService(cfg.Promo)
	pricingSvc := service.NewPricingService(cfg.Pricing)
	membershipSvc := service.NewMembershipService(store.UserRepository, hub, cfg.Membership)
	loanTracker := service.NewLoanTracker(store.UserRepository, store.TransactionRepository, hub)
	transactionSvc := service.NewTransactionService(
		store.UserRepository,
		store.TransactionRepository,
		membershipSvc,
		loanTracker,
		promoSvc,
		pricingSvc,
		hub,
		notifier,
	)
	authSvc := service.NewAuthService(store.UserRepository, tokenManager, notifier, cfg.Admin.BootstrapEmail)
	chatSvc := service.NewChatService(store.ChatRepository, store.UserRepository, hub, whatsappSvc)
	adminSvc := service.NewAdminService(store.UserRepository, store.TransactionRepository)

	// Reminder jobs run in-process alongside the API.
	jobRunner := jobs.NewJobRunner(store, emailSvc, cfg)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Tokens:       tokenManager,
		Auth:         authSvc,
		Transactions: transactionSvc,
		Admin:        adminSvc,
		Chat:         chatSvc,
		Promos:       promoSvc,
		Hub:          hub,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	cronScheduler.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

package http

import (
	"net/http"

	"xapobank-backend/internal/realtime"
	"xapobank-backend/internal/security"
	"xapobank-backend/internal/service"

	"github.com/gorilla/mux"
)

// RouterDeps collects everything the HTTP surface needs.
type RouterDeps struct {
	Tokens       security.TokenManager
	Auth         service.AuthService
	Transactions service.TransactionService
	Admin        service.AdminService
	Chat         service.ChatService
	Promos       service.PromoService
	Hub          *realtime.Hub
}

func NewRouter(deps RouterDeps) *mux.Router {
	mw := newMiddleware(deps.Tokens)

	authHandler := NewAuthHandler(deps.Auth)
	txHandler := NewTransactionHandler(deps.Transactions)
	adminHandler := NewAdminHandler(deps.Admin, deps.Transactions, deps.Promos)
	webhookHandler := NewWebhookHandler(deps.Transactions)
	chatHandler := NewChatHandler(deps.Chat)

	r := mux.NewRouter()
	r.Use(corsMiddleware, requestLogger)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Auth
	api.HandleFunc("/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)
	api.Handle("/auth/me", mw.requireAuth(http.HandlerFunc(authHandler.Me))).Methods(http.MethodGet)

	// Transactions. Creation is optionally authenticated: anonymous deposit
	// intents are allowed, loans and internal payments are not.
	api.Handle("/transactions", mw.optionalAuth(http.HandlerFunc(txHandler.Create))).Methods(http.MethodPost)
	api.Handle("/transactions", mw.optionalAuth(http.HandlerFunc(txHandler.List))).Methods(http.MethodGet)
	api.Handle("/transactions/{id}/status", mw.requireAdmin(http.HandlerFunc(txHandler.UpdateStatus))).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/collateral/withdraw", mw.requireAuth(http.HandlerFunc(txHandler.WithdrawCollateral))).Methods(http.MethodPost)

	// Admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Handle("/transactions/pending", mw.requireAdmin(http.HandlerFunc(adminHandler.ListPending))).Methods(http.MethodGet)
	admin.Handle("/transactions/{id}/approve", mw.requireAdmin(http.HandlerFunc(adminHandler.Approve))).Methods(http.MethodPost)
	admin.Handle("/users/{userId}/transactions", mw.requireAdmin(http.HandlerFunc(adminHandler.ListUserTransactions))).Methods(http.MethodGet)
	admin.Handle("/users/promote", mw.requireAdmin(http.HandlerFunc(adminHandler.PromoteToAdmin))).Methods(http.MethodPost)
	admin.Handle("/promo-codes", mw.requireAdmin(http.HandlerFunc(adminHandler.ListPromoCodes))).Methods(http.MethodGet)
	admin.Handle("/promo-codes", mw.requireAdmin(http.HandlerFunc(adminHandler.AddPromoCode))).Methods(http.MethodPost)
	admin.Handle("/promo-codes/{code}", mw.requireAdmin(http.HandlerFunc(adminHandler.RemovePromoCode))).Methods(http.MethodDelete)

	// Webhooks
	api.HandleFunc("/webhooks/crypto-deposit", webhookHandler.CryptoDeposit).Methods(http.MethodPost)

	// Support chat
	api.Handle("/chat/messages", mw.requireAuth(http.HandlerFunc(chatHandler.Send))).Methods(http.MethodPost)
	api.Handle("/chat/messages", mw.requireAuth(http.HandlerFunc(chatHandler.History))).Methods(http.MethodGet)

	// Realtime
	r.HandleFunc("/ws", deps.Hub.HandleWS)

	return r
}

package http

import (
	"net/http"

	"xapobank-backend/internal/service"
)

// WebhookHandler receives payment-provider callbacks. These endpoints are
// unauthenticated by design; every payload is validated and idempotent.
type WebhookHandler struct {
	transactions service.TransactionService
}

func NewWebhookHandler(transactions service.TransactionService) *WebhookHandler {
	return &WebhookHandler{transactions: transactions}
}

func (h *WebhookHandler) CryptoDeposit(w http.ResponseWriter, r *http.Request) {
	var event service.CryptoDepositEvent
	if err := decodeJSON(r, &event); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tx, err := h.transactions.IngestCryptoDeposit(r.Context(), event)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, tx)
}

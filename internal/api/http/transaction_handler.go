package http

import (
	"net/http"
	"strconv"
	"strings"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/service"

	"github.com/gorilla/mux"
)

type TransactionHandler struct {
	transactions service.TransactionService
}

func NewTransactionHandler(transactions service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// Client-supplied server-side fields are never trusted.
	tx.ID = 0
	tx.AppliedToBalances = false
	tx.InternalPaymentApplied = false
	tx.InternalPaymentFailed = false
	tx.PromoApplied = false
	tx.PromoBonusAmount = 0

	created, err := h.transactions.Create(r.Context(), identityFrom(r), &tx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, created)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := service.TransactionQuery{}
	q := r.URL.Query()

	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid userId")
			return
		}
		userID := int32(id)
		query.UserID = &userID
	}
	if raw := q.Get("status"); raw != "" {
		query.Statuses = splitQueryList(raw)
	}
	if raw := q.Get("type"); raw != "" {
		query.Types = splitQueryList(raw)
	}

	items, err := h.transactions.GetTransactions(r.Context(), identityFrom(r), query)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, items)
}

func (h *TransactionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ref := mux.Vars(r)["id"]
	tx, err := h.transactions.UpdateStatus(r.Context(), identityFrom(r), ref, req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, tx)
}

func (h *TransactionHandler) WithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount    float64 `json:"amount"`
		BTCAmount float64 `json:"btc_amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.transactions.WithdrawCollateral(r.Context(), identityFrom(r), req.Amount, req.BTCAmount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, result)
}

func splitQueryList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

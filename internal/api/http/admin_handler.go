package http

import (
	"net/http"
	"strconv"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/service"

	"github.com/gorilla/mux"
)

type AdminHandler struct {
	admin        service.AdminService
	transactions service.TransactionService
	promos       service.PromoService
}

func NewAdminHandler(admin service.AdminService, transactions service.TransactionService, promos service.PromoService) *AdminHandler {
	return &AdminHandler{admin: admin, transactions: transactions, promos: promos}
}

func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.admin.ListPending(r.Context(), identityFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, items)
}

// Approve is a convenience wrapper over the status update that marks a
// transaction completed.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["id"]
	tx, err := h.transactions.UpdateStatus(r.Context(), identityFrom(r), ref, domain.StatusCompleted)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, tx)
}

func (h *AdminHandler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["userId"]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid userId")
		return
	}
	items, err := h.admin.ListUserTransactions(r.Context(), identityFrom(r), int32(id))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, items)
}

func (h *AdminHandler) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.admin.PromoteToAdmin(r.Context(), identityFrom(r), req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, user)
}

func (h *AdminHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.promos.AllowedCodes())
}

func (h *AdminHandler) AddPromoCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	codes, err := h.promos.Add(req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, codes)
}

func (h *AdminHandler) RemovePromoCode(w http.ResponseWriter, r *http.Request) {
	codes, err := h.promos.Remove(mux.Vars(r)["code"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, codes)
}

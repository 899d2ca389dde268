package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/service"
)

// envelope is the wire format every endpoint speaks: {"isOk": true, "data":
// ...} on success, {"isOk": false, "error": "..."} on failure.
type envelope struct {
	IsOk  bool   `json:"isOk"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`

	// Typed rejection details, present only on the errors that carry them.
	ActiveLoanID     *int32   `json:"activeLoanId,omitempty"`
	ActiveLoanAmount *float64 `json:"activeLoanAmount,omitempty"`
	MaxLoanAmount    *float64 `json:"maxLoanAmount,omitempty"`
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{IsOk: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{IsOk: false, Error: message})
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// respondServiceError maps service-layer errors onto HTTP statuses, passing
// through the structured fields clients use to build retry UX.
func respondServiceError(w http.ResponseWriter, err error) {
	var loanRestricted *service.LoanRestrictedError
	if errors.As(err, &loanRestricted) {
		respondJSON(w, http.StatusBadRequest, envelope{
			IsOk:             false,
			Error:            loanRestricted.Error(),
			ActiveLoanID:     &loanRestricted.ActiveLoanID,
			ActiveLoanAmount: &loanRestricted.ActiveLoanAmount,
		})
		return
	}
	var insufficientCollateral *service.InsufficientCollateralError
	if errors.As(err, &insufficientCollateral) {
		respondJSON(w, http.StatusBadRequest, envelope{
			IsOk:          false,
			Error:         insufficientCollateral.Error(),
			MaxLoanAmount: &insufficientCollateral.MaxLoanAmount,
		})
		return
	}
	var insufficientFunds *service.InsufficientFundsError
	if errors.As(err, &insufficientFunds) {
		respondError(w, http.StatusBadRequest, insufficientFunds.Error())
		return
	}
	var membershipActive *service.MembershipActiveError
	if errors.As(err, &membershipActive) {
		respondError(w, http.StatusBadRequest, membershipActive.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

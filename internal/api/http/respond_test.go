package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"xapobank-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondServiceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"InvalidInput", fmt.Errorf("%w: bad amount", service.ErrInvalidInput), http.StatusBadRequest},
		{"Unauthorized", service.ErrUnauthorized, http.StatusUnauthorized},
		{"InvalidCredentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"Forbidden", fmt.Errorf("%w: admin only", service.ErrForbidden), http.StatusForbidden},
		{"NotFound", service.ErrNotFound, http.StatusNotFound},
		{"Unexpected", errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.False(t, body.IsOk)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRespondServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, errors.New("pq: password authentication failed"))
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Server error", body.Error)
}

func TestRespondServiceErrorLoanRestricted(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, &service.LoanRestrictedError{
		ActiveLoanID:     42,
		ActiveLoanAmount: 300,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.False(t, body.IsOk)
	require.NotNil(t, body.ActiveLoanID)
	assert.Equal(t, int32(42), *body.ActiveLoanID)
	require.NotNil(t, body.ActiveLoanAmount)
	assert.Equal(t, 300.0, *body.ActiveLoanAmount)
}

func TestRespondServiceErrorInsufficientCollateral(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, &service.InsufficientCollateralError{
		Requested:     500,
		MaxLoanAmount: 400,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	require.NotNil(t, body.MaxLoanAmount)
	assert.Equal(t, 400.0, *body.MaxLoanAmount)
}

func TestRespondOK(t *testing.T) {
	rec := httptest.NewRecorder()
	respondOK(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeEnvelope(t, rec)
	assert.True(t, body.IsOk)
}

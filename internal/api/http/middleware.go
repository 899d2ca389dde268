package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/security"
)

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the verified requester, or nil for anonymous calls.
func identityFrom(r *http.Request) *security.Identity {
	id, _ := r.Context().Value(identityKey).(*security.Identity)
	return id
}

type middleware struct {
	tokens security.TokenManager
}

func newMiddleware(tokens security.TokenManager) *middleware {
	return &middleware{tokens: tokens}
}

// optionalAuth attaches the identity when a valid bearer token is present
// and lets the request through either way.
func (m *middleware) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := m.tokens.VerifyCredential(bearerToken(r)); identity != nil {
			r = r.WithContext(context.WithValue(r.Context(), identityKey, identity))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a valid access token.
func (m *middleware) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := m.tokens.VerifyCredential(bearerToken(r))
		if identity == nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// requireAdmin rejects requests unless the token's role is admin. The role
// claim is refreshed at login, so a demoted admin keeps access only until
// their token expires.
func (m *middleware) requireAdmin(next http.Handler) http.Handler {
	return m.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r).IsAdmin() {
			respondError(w, http.StatusForbidden, "Forbidden: admin only")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// requestLogger logs each request with its duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// corsMiddleware allows the browser frontend to call the API cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Middleware authenticates bearer tokens.
type Middleware struct {
	tokens *Tokens
	logger *slog.Logger
}

// NewMiddleware constructs Middleware.
func NewMiddleware(tokens *Tokens, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate rejects requests without a valid bearer token and stores the
// principal in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		principal, err := m.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("reject token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

package mw

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
)

// TokenVerifier checks a raw session token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// Session attaches verified claims to the request context when the caller
// presents a valid token. Invalid or missing tokens leave the request
// anonymous.
func Session(v TokenVerifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.TokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				log.Debug("session token rejected", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth rejects anonymous callers with 401. It must run after Session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.Authenticated(r.Context()) {
			respond.Fail(w, http.StatusUnauthorized, "authentication required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

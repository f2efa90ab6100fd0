// Package middleware holds the HTTP middleware shared by every route group.
package middleware

import (
	"net/http"
	"strings"

	"pushauth/backend/internal/authz"
	"pushauth/backend/internal/platform/respond"
	"pushauth/backend/internal/security"
)

const bearerPrefix = "bearer "

// Authenticate validates the Bearer access token and stores the caller as the authz subject.
// Requests without a valid token are rejected with 401 before reaching the handler.
func Authenticate(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				respond.Error(w, r, authz.ErrUnauthenticated)
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				respond.Error(w, r, authz.ErrUnauthenticated)
				return
			}
			recordSubject(r.Context(), claims.Subject)
			ctx := authz.WithSubject(r.Context(), authz.Subject{UserID: claims.Subject, SessionID: claims.SessionID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

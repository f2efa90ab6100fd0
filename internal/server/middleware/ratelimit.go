package middleware

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"pushauth/backend/internal/authz"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/platform/respond"
	"pushauth/backend/internal/ratelimit"
)

// RateLimit admits a request only if limiter allows one more event for the caller. Callers are keyed
// by authz subject, falling back to the client IP. A limiter error fails open and is logged, so a
// Redis outage does not block logins. window, when positive, is advertised in Retry-After.
func RateLimit(limiter ratelimit.Limiter, scope string, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":ip:" + ClientIP(r)
			if s, ok := authz.SubjectFrom(r.Context()); ok {
				key = scope + ":user:" + s.UserID
			}
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Printf("ratelimit: %s: %v (allowing)", key, err)
				allowed = true
			}
			if !allowed {
				if secs := int(window.Seconds()); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				respond.Error(w, r, apperr.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

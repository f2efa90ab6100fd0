package middleware

import (
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/platform/respond"
)

// Recover turns a panic in a handler into a 500 JSON response. Invariant violations are logged with
// their message and never retried; anything else is logged with a stack trace.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			var inv *apperr.InvariantError
			if err, ok := rec.(error); ok && errors.As(err, &inv) {
				log.Printf("http: invariant violated in %s %s: %v", r.Method, r.URL.Path, inv)
			} else {
				log.Printf("http: panic in %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			}
			respond.JSON(w, http.StatusInternalServerError, respond.ErrorBody{Code: "INTERNAL", Message: "internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}

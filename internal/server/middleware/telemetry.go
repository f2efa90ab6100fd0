package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pushauth/backend/internal/telemetry"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

type subjectSlotKey struct{}

// subjectSlot lets Authenticate, which runs inside a route group, report the caller back to
// RequestTelemetry, which wraps the whole router.
type subjectSlot struct{ userID string }

func recordSubject(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(subjectSlotKey{}).(*subjectSlot); ok {
		slot.userID = userID
	}
}

// RequestTelemetry logs each request and emits an http_request event after it completes.
// Emission is best-effort and never delays the response. If emitter is nil only the log line is
// written. skipRoutes holds chi route patterns (e.g. "/healthz") that are neither logged nor emitted.
func RequestTelemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			slot := &subjectSlot{}
			r = r.WithContext(context.WithValue(r.Context(), subjectSlotKey{}, slot))
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			if skipRoutes[route] {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			meta := httpRequestMetadata{
				Method:     r.Method,
				Route:      route,
				Status:     status,
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
			}
			log.Printf("http: %s %s %d %dms", meta.Method, meta.Route, meta.Status, meta.DurationMs)

			ev := telemetry.NewEvent(telemetry.EventHTTPRequest, "http_middleware", meta)
			ev.UserID = slot.userID
			if strings.HasPrefix(route, "/challenges/") {
				ev.ChallengeID = chi.URLParam(r, "id")
			}
			telemetry.EmitAsync(emitter, r.Context(), ev)
		})
	}
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

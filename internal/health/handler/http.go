package handler

import (
	"encoding/json"
	"net/http"

	"pushauth/backend/internal/health"
)

// NewHTTPHandler serves the Monitor's report as JSON: 200 when serving, 503 otherwise.
func NewHTTPHandler(m *health.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := m.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !report.Serving {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}

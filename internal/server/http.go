package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	challengehandler "pushauth/backend/internal/challenge/handler"
	devicehandler "pushauth/backend/internal/device/handler"
	"pushauth/backend/internal/health"
	healthhandler "pushauth/backend/internal/health/handler"
	"pushauth/backend/internal/ratelimit"
	"pushauth/backend/internal/security"
	"pushauth/backend/internal/server/middleware"
	"pushauth/backend/internal/telemetry"
)

// HTTPDeps holds what the HTTP router needs. Challenges, Devices and Tokens are required.
type HTTPDeps struct {
	Challenges *challengehandler.Handler
	Devices    *devicehandler.Handler
	// Tokens validates Bearer access tokens on protected routes.
	Tokens *security.TokenProvider
	// Health backs GET /healthz. If nil, /healthz always reports serving.
	Health *health.Monitor
	// ChallengeLimiter bounds POST /challenges per caller. If nil, creation is unlimited.
	ChallengeLimiter ratelimit.Limiter
	RateWindow       time.Duration
	// Events receives an http_request event per request. May be nil.
	Events         telemetry.EventEmitter
	AllowedOrigins []string
}

// NewRouter builds the HTTP API.
//
// Public routes:
//   - GET  /healthz
//   - POST /challenges/{id}/verify  (the device's signature is the credential)
//
// Bearer-protected routes:
//   - POST /challenges, GET /challenges/{id}
//   - POST /devices, GET /devices, GET /devices/{id}, PUT /devices/{id}/push-address
//   - GET  /devices/{id}/challenges
func NewRouter(deps HTTPDeps) http.Handler {
	limiter := deps.ChallengeLimiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.RequestTelemetry(deps.Events, map[string]bool{"/healthz": true}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", healthhandler.NewHTTPHandler(deps.Health))
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	r.Post("/challenges/{id}/verify", deps.Challenges.Verify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Tokens))
		r.With(middleware.RateLimit(limiter, "challenge", deps.RateWindow)).Post("/challenges", deps.Challenges.Create)
		r.Get("/challenges/{id}", deps.Challenges.Get)

		r.Post("/devices", deps.Devices.Link)
		r.Get("/devices", deps.Devices.List)
		r.Get("/devices/{id}", deps.Devices.Get)
		r.Put("/devices/{id}/push-address", deps.Devices.RegisterPushAddress)
		r.Get("/devices/{id}/challenges", deps.Challenges.ListPending)
	})

	return otelhttp.NewHandler(r, "pushauth.http",
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/healthz" }),
	)
}

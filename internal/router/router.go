// Package router is the single source of truth for the ingress HTTP
// surface: it wires chi, attaches global and per-route middleware, and
// registers every endpoint from spec.md's external interface table.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ndidit/notifyhub/internal/auth"
	"github.com/ndidit/notifyhub/internal/handlers"
	"github.com/ndidit/notifyhub/internal/middleware"
	"github.com/ndidit/notifyhub/internal/ratelimit"
)

type Deps struct {
	Notification *handlers.NotificationHandler
	Status       *handlers.StatusHandler
	Health       *handlers.HealthHandler
	JWTVerifier  *auth.JWTVerifier
	APIKeys      *auth.APIKeyVerifier
	ServiceAuth  *auth.ServiceTokenVerifier
	RateLimit    *ratelimit.Window
	Registry     *prometheus.Registry
	CORSOrigins  []string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(middleware.CorrelationID)
	if len(d.CORSOrigins) > 0 {
		r.Use(middleware.CORS(d.CORSOrigins))
	}

	r.Get("/health", d.Health.HandleLive)
	r.Get("/health/live", d.Health.HandleLive)
	r.Get("/health/ready", d.Health.HandleReady)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	userOrKey := middleware.UserOrAPIKey(d.JWTVerifier, d.APIKeys)
	jwtOnly := middleware.RequireUserJWT(d.JWTVerifier)
	serviceOnly := middleware.RequireServiceToken(d.ServiceAuth)
	rateLimited := middleware.RateLimit(d.RateLimit)

	r.Group(func(r chi.Router) {
		r.Use(rateLimited, userOrKey)
		r.Post("/notifications", d.Notification.HandleSubmit)
		r.Get("/notifications/{id}", d.Notification.HandleGet)
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimited, jwtOnly)
		r.Get("/notifications", d.Notification.HandleList)
	})

	r.Group(func(r chi.Router) {
		r.Use(serviceOnly)
		r.Post("/{channel}/status", d.Status.HandleStatus)
	})

	return r
}

// TemplateDeps wires the standalone template service's HTTP surface: render
// only, per the non-goal against a CRUD HTTP surface beyond what the engine
// exposes at the Go API level.
type TemplateDeps struct {
	Template *handlers.TemplateHandler
	Health   *handlers.HealthHandler
	Registry *prometheus.Registry
}

func NewTemplateRouter(d TemplateDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)

	r.Get("/health", d.Health.HandleLive)
	r.Get("/health/live", d.Health.HandleLive)
	r.Get("/health/ready", d.Health.HandleReady)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	r.Post("/templates/render", d.Template.HandleRender)

	return r
}

// WorkerOpsDeps wires the liveness/readiness/metrics-only surface each
// worker binary exposes for its own container probes; workers have no
// request/response API of their own.
type WorkerOpsDeps struct {
	Health   *handlers.HealthHandler
	Registry *prometheus.Registry
}

func NewWorkerOpsRouter(d WorkerOpsDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)

	r.Get("/health", d.Health.HandleLive)
	r.Get("/health/live", d.Health.HandleLive)
	r.Get("/health/ready", d.Health.HandleReady)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	return r
}

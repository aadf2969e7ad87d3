// Package http is the dashboard's HTTP surface: session endpoints, the
// notification feed, and the guarded data endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/health"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/middleware"
)

// RouterConfig carries the router's settings.
type RouterConfig struct {
	ServiceName         string
	Environment         string
	RequestTimeout      time.Duration
	CORSAllowedOrigins  []string
	CORSMaxAge          int
	LoginRateLimitRPS   int
	LoginRateLimitBurst int
	MetricsAllowedCIDRs []string
	PprofEnabled        bool
	PprofAllowedCIDRs   []string
}

// Services are the collaborators behind the routes.
type Services struct {
	Session   *session.Manager
	Feed      *notify.Feed
	Dashboard *service.DashboardService
	Profiles  *service.ProfileService
	Cases     *service.CaseService
	Patients  *service.PatientService
	APIProxy  http.Handler
	Health    *health.Handler
}

// NewRouter creates a chi router with all dashboard routes registered.
func NewRouter(cfg RouterConfig, svc Services, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	identity := sessionIdentity{sm: svc.Session}

	r := chi.NewRouter()

	// Global middleware stack (applied in order).
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID", "Location", "Retry-After"},
		MaxAge:         cfg.CORSMaxAge,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger, identity))

	r.Get("/health/live", svc.Health.LivenessHandler())
	r.Get("/health/ready", svc.Health.ReadinessHandler())
	r.With(middleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Get("/metrics", promhttp.Handler().ServeHTTP)
	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	notifications := NewNotificationHandler(svc.Feed, cfg.CORSAllowedOrigins, logger)
	// The stream is long-lived, so it stays outside the timeout group.
	r.Get("/notifications/ws", notifications.Stream)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(middleware.NoStore)

		sessionHandler := NewSessionHandler(svc.Session, logger)
		r.Get("/session", sessionHandler.Get)
		r.With(middleware.RateLimit(cfg.LoginRateLimitRPS, cfg.LoginRateLimitBurst, logger)).
			Post("/session/login", sessionHandler.Login)
		r.Post("/session/logout", sessionHandler.Logout)
		r.Post("/session/refresh", sessionHandler.Refresh)

		r.Get("/notifications", notifications.List)

		// Everything below needs a restored, signed-in session.
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireSession(identity, domain.RouteEntry))

			dashboard := NewDashboardHandler(svc.Session, svc.Dashboard, logger)
			r.Get("/dashboard", dashboard.Summary)
			r.Get("/dashboard/patients", dashboard.Patients)

			profile := NewProfileHandler(svc.Session, svc.Profiles, logger)
			r.Get("/profile", profile.Get)
			r.Patch("/profile", profile.Update)

			cases := NewCaseHandler(svc.Cases, logger)
			r.Get("/cases", cases.List)
			r.Get("/cases/{id}", cases.Get)
			r.Delete("/cases/{id}", cases.Delete)

			patients := NewPatientHandler(svc.Session, svc.Patients, logger)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(
					domain.RoleDoctor.String(),
					domain.RoleSheha.String(),
					domain.RoleHealthSupervisor.String(),
				))
				r.Get("/patients/{id}", patients.Get)
				r.Put("/patients/{id}", patients.Update)
			})

			if svc.APIProxy != nil {
				r.Handle("/raw/*", svc.APIProxy)
			}
		})
	})

	return r
}

package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelierzen/booking-backend/internal/auth"
	"github.com/atelierzen/booking-backend/internal/observability"
	"github.com/atelierzen/booking-backend/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, authSvc *auth.Service) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, "webhook", 120, time.Minute))
		r.Post("/webhook", h.Webhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, "login", 10, 15*time.Minute))
		r.Post("/auth/login", h.Login)
	})
	r.Post("/auth/logout", h.Logout)

	r.Post("/create-checkout-session", h.CreateCheckoutSession)

	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(authSvc))
		r.Get("/reservations", h.ListReservations)
		r.Get("/payments", h.ListPayments)
		r.Get("/admin/metrics", h.AdminMetrics)
	})

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

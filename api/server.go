/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     zap access log
  4. Metrics:    Prometheus request counter and latency (when configured)
  5. CORS:       Cross-origin requests for the admin dashboard

ROUTE GROUPS:
  /healthz                          Liveness + database ping
  /metrics                          Prometheus scrape endpoint
  /api/balances/*                   Financial balance reads
  /api/institutional-earnings/*     Institutional earnings reads
  /api/admin/*                      Admin writes (JWT + rate limit)

Each registered kind gets the same three read routes and the same three
admin routes under its own path segment (KindRoute.Path).

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Admin principal middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public reads, one group per kind
		for _, kr := range h.kinds {
			r.Route("/"+kr.Path, func(r chi.Router) {
				r.Get("/", h.ListYear(kr))
				r.Get("/summary", h.Summary(kr))
				r.Get("/years", h.Years(kr))
			})
		}

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.auth.Middleware)
			r.Use(h.limiter.Middleware)

			for _, kr := range h.kinds {
				r.Route("/"+kr.Path, func(r chi.Router) {
					r.Put("/{year}", h.UpdateYear(kr))
					r.Put("/{year}/{month}", h.UpdateMonth(kr))
					r.Post("/{year}/{month}/reset", h.ResetMonth(kr))
				})
			}

			r.Route("/contributions", func(r chi.Router) {
				r.Get("/", h.ListContributions)
				r.Post("/", h.CreateContribution)
				r.Put("/{id}/status", h.SetContributionStatus)
			})

			r.Route("/credits", func(r chi.Router) {
				r.Get("/", h.ListCredits)
				r.Post("/", h.CreateCredit)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		})
	})

	return r
}

// requestLogger writes one zap line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

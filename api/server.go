/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. Metrics:     Prometheus request counters and latency
  5. CORS:        Cross-origin requests for frontend
  6. RequireAuth: JWT validation on everything under /api except /api/auth

ROUTE GROUPS:
  /api/auth/*           Signup and login (public)
  /api/expenses/*       Expense submission and listing
  /api/approvals/*      Approval queue, history, decisions
  /api/users/*          User administration
  /api/dashboard-stats  Role-scoped aggregates
  /metrics              Prometheus scrape endpoint
  /health               Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: JWT authentication middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
		})

		// Everything else requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.JWT))

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", h.SubmitExpense)
				r.Get("/my", h.ListMyExpenses)
			})

			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", h.ListPendingApprovals)
				r.Get("/history", h.ListApprovalHistory)
				r.Post("/{stepID}", h.Decide)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Put("/{id}", h.UpdateRole)
				r.Put("/{id}/assign-manager", h.AssignManager)
			})

			r.Get("/dashboard-stats", h.DashboardStats)
		})
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

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
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*          Account management, savings, invoices
  /api/properties/*     Parcel management
  /api/appeals/*        Appeal lifecycle and comparable evidence
  /api/townships/*      Deadline calendar lookups
  /api/invoices/*       Invoice detail and notice audit trail
  /api/admin/*          Reductions, manual invoices, job runs, reset
  /api/cron/*           Scheduled jobs (bearer-token protected)

CRON AUTHENTICATION:
  The cron group sits behind a shared-secret bearer token. An unset secret
  fails closed: every cron request gets 503 until the operator configures
  one. Token comparison is constant-time.

SEE ALSO:
  - handlers.go: Handler implementations
  - cron.go: Job implementations behind /api/cron
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. cronSecret
// guards the /api/cron group; empty means the group is not configured and
// fails closed.
func NewRouter(h *Handler, cronSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/properties", h.ListUserProperties)
			r.Get("/{id}/appeals", h.ListUserAppeals)
			r.Get("/{id}/invoices", h.ListUserInvoices)
			r.Get("/{id}/savings", h.GetUserSavings)
		})

		// Property routes
		r.Route("/properties", func(r chi.Router) {
			r.Post("/", h.CreateProperty)
			r.Get("/{id}", h.GetProperty)
		})

		// Appeal routes
		r.Route("/appeals", func(r chi.Router) {
			r.Post("/", h.CreateAppeal)
			r.Get("/{id}", h.GetAppeal)
			r.Post("/{id}/status", h.UpdateAppealStatus)
			r.Put("/{id}/property", h.UpdateAppealProperty)
			r.Get("/{id}/comparables", h.ListComparables)
			r.Post("/{id}/comparables", h.AddComparable)
			r.Post("/{id}/comparables/enrich", h.EnrichComparables)
		})

		// Township deadline routes
		r.Route("/townships", func(r chi.Router) {
			r.Get("/", h.ListTownships)
			r.Get("/active", h.ActiveTownships)
			r.Get("/{name}/deadline", h.GetTownshipDeadline)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{id}", h.GetInvoice)
			r.Get("/{id}/notices", h.ListInvoiceNotices)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reductions", h.CreateReduction)
			r.Post("/invoices", h.CreateInvoice)
			r.Get("/job-runs", h.ListJobRuns)
			r.Post("/reset", h.ResetDatabase)
		})

		// Cron routes: one endpoint per scheduled job so an external
		// scheduler (or the built-in one) can trigger them. GET because
		// hosted cron services only issue GETs; the bearer token is the
		// guard, not the verb.
		r.Route("/cron", func(r chi.Router) {
			r.Use(bearerAuth(cronSecret))
			r.Get("/collections", h.CronCollections)
			r.Get("/performance-fees", h.CronPerformanceFees)
			r.Get("/deadline-reminders", h.CronDeadlineReminders)
		})
	})

	return r
}

// bearerAuth guards a route group with a shared-secret bearer token.
// An empty secret fails closed with 503 so a misconfigured deploy can never
// expose the job endpoints.
func bearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, http.StatusServiceUnavailable, "cron endpoints not configured")
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == r.Header.Get("Authorization") || // no Bearer prefix
				subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

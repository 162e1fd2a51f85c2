/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. zerolog:    Structured request logging
  4. CORS:       Cross-origin requests for frontend tooling

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)

			r.Route("/{project}", func(r chi.Router) {
				r.Delete("/", h.DeleteProject)

				r.Get("/snapshot", h.GetSnapshot)
				r.Put("/snapshot", h.PutSnapshot)

				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", h.ListInvoices)
					r.Post("/", h.CreateInvoice)
					r.Get("/{id}", h.GetInvoice)
					r.Get("/{id}/amortization", h.GetAmortization)
				})

				r.Route("/payments", func(r chi.Router) {
					r.Get("/", h.ListPayments)
					r.Post("/", h.CreatePayment)
					r.Post("/{id}/apply-fifo", h.ApplyFIFO)
				})

				r.Route("/assignments", func(r chi.Router) {
					r.Get("/", h.ListAssignments)
					r.Post("/", h.CreateAssignment)
					r.Put("/{id}", h.UpdateAssignment)
					r.Delete("/{id}", h.DeleteAssignment)
				})

				r.Get("/summary", h.GetSummary)
				r.Put("/rate-config", h.PutRateConfig)
			})
		})
	})

	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			h.Log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

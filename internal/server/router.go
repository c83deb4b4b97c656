package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/server/handler"
	"github.com/sevigo/merge-warden/internal/workflow"
)

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, queue core.JobQueue, wf *workflow.Service, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	jobsHandler := handler.NewJobsHandler(queue, wf, logger)

	// Health check endpoint
	r.Get("/health", jobsHandler.Health)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		webhookHandler := handler.NewWebhookHandler(cfg, wf, logger)
		r.Post("/webhook/github", webhookHandler.Handle)

		r.Post("/reviews/trigger", jobsHandler.Trigger)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobsHandler.ListJobs)
			r.Get("/{id}", jobsHandler.GetJob)
			r.Delete("/{id}", jobsHandler.CancelJob)
		})
		r.Get("/queue/stats", jobsHandler.QueueStats)
		r.Get("/workflow/status", jobsHandler.WorkflowStatus)
	})

	// Kept for load balancers that probe the API prefix directly.
	r.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.Health(w, r)
	})

	return r
}

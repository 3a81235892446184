package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions carries the optional pieces mounted next to the handlers.
type RouteOptions struct {
	// TriggerLimit wraps the run trigger endpoint, usually a per-IP rate limiter.
	TriggerLimit func(http.Handler) http.Handler
	// Stream serves the live event stream at /ws/{project_id}.
	Stream http.Handler
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.HealthCheck)
	if opts.Stream != nil {
		r.Handle("/ws/{project_id}", opts.Stream)
	}

	trigger := http.Handler(http.HandlerFunc(h.TriggerRun))
	if opts.TriggerLimit != nil {
		trigger = opts.TriggerLimit(trigger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Put("/projects/{id}", h.UpdateProject)
		r.Delete("/projects/{id}", h.DeleteProject)

		// Connections (nested under projects)
		r.Get("/projects/{id}/connections", h.ListConnections)
		r.Post("/projects/{id}/connections", h.CreateConnection)
		r.Get("/projects/{id}/connections/{cid}", h.GetConnection)
		r.Put("/projects/{id}/connections/{cid}", h.UpdateConnection)
		r.Delete("/projects/{id}/connections/{cid}", h.DeleteConnection)
		r.Post("/projects/{id}/connections/{cid}/test", h.TestConnection)

		// Runs
		r.Method(http.MethodPost, "/projects/{id}/runs", trigger)
		r.Get("/projects/{id}/runs", h.ListRuns)
		r.Get("/projects/{id}/runs/{rid}", h.GetRun)
		r.Post("/projects/{id}/runs/{rid}/action", h.RunAction)
		r.Post("/projects/{id}/runs/{rid}/diffs/{did}/action", h.DiffAction)
		r.Get("/projects/{id}/runs/{rid}/logs", h.RunLogs)
		r.Get("/projects/{id}/checkpoint", h.GetCheckpoint)

		// Chat history
		r.Get("/projects/{id}/messages", h.ListMessages)
		r.Get("/projects/{id}/messages/summary", h.MessageSummary)

		// Integrations and maintenance
		r.Get("/services/status", h.ServicesStatus)
		r.Post("/admin/reset", h.AdminReset)
	})
}

package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Targets
		r.Get("/targets", h.ListTargets)
		r.Post("/targets", h.CreateTarget)
		r.Get("/targets/due", h.ListDueTargets)
		r.Get("/targets/{id}", h.GetTarget)
		r.Patch("/targets/{id}/settings", h.UpdateTargetSettings)
		r.Delete("/targets/{id}", h.DeleteTarget)

		// Sync runs
		r.Post("/targets/{id}/sync", h.StartSync)
		r.Get("/targets/{id}/runs", h.ListTargetRuns)
		r.Get("/runs", h.ListRuns)
		r.Post("/sync/auto", h.RunAutoSync)

		// Source registry
		r.Get("/sources", h.ListSources)
	})

	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}
}

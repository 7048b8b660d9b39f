package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/graphstudio/engine/internal/api/handlers"
	mw "github.com/graphstudio/engine/internal/api/middleware"
)

type Dependencies struct {
	Resolver        mw.SessionResolver
	ProjectsHandler *handlers.ProjectsHandler
	GraphHandler    *handlers.GraphHandler
	SyncHandler     *handlers.SyncHandler
	WSHandler       http.HandlerFunc
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(50, 100))
	r.Use(chimid.Compress(5))

	// Health and metrics endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Realtime channel
	if dep.WSHandler != nil {
		r.Get("/ws", dep.WSHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		// Public routes: project discovery and session minting
		api.Get("/status", dep.SyncHandler.Status)
		api.Get("/projects", dep.ProjectsHandler.List)
		api.Post("/projects", dep.ProjectsHandler.Create)
		api.Post("/projects/{id}/join", dep.ProjectsHandler.Join)

		// Session-authorized routes, scoped to the resolved project
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.Resolver))

			protected.Get("/projects/current", dep.ProjectsHandler.Current)
			protected.Delete("/projects/{id}", dep.ProjectsHandler.Delete)

			protected.Get("/graph", dep.GraphHandler.Graph)
			protected.Get("/nodes", dep.GraphHandler.Nodes)
			protected.Get("/edges", dep.GraphHandler.Edges)

			protected.Post("/nodes", dep.GraphHandler.SaveNode)
			protected.Put("/nodes/{id}", dep.GraphHandler.UpdateNode)
			protected.Delete("/nodes/{id}", dep.GraphHandler.DeleteNode)

			protected.Post("/edges", dep.GraphHandler.SaveEdge)
			protected.Put("/edges/{id}", dep.GraphHandler.UpdateEdge)
			protected.Delete("/edges/{id}", dep.GraphHandler.DeleteEdge)

			protected.Get("/changes/{timestamp}", dep.SyncHandler.Changes)
			protected.Get("/sync/timestamp", dep.SyncHandler.Timestamp)

			protected.Post("/import", dep.SyncHandler.Import)
			protected.Post("/clear", dep.SyncHandler.Clear)
		})
	})

	return r
}

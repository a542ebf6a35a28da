// Package api assembles the thin HTTP demonstration surface described in
// SPEC_FULL.md: a minimal chi router exposing the controller facade's
// registries over REST. The full client-facing HTTP/WebSocket server is
// out of scope per spec.md §1 — this exists only to prove the facade is
// callable from outside the process, mirroring the teacher's own
// thin-pkg/server-wraps-internal-services shape.
package api

import (
	"net/http"

	"github.com/netsim/controller/internal/api/handlers"
	"github.com/netsim/controller/internal/controller"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP router wrapping the controller facade.
func NewRouter(c *controller.Controller) http.Handler {
	h := handlers.New(c)
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(zerologMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler)

	r.Route("/v2", func(r chi.Router) {
		r.Route("/computes", func(r chi.Router) {
			r.Get("/", h.ListComputes)
			r.Post("/", h.CreateCompute)
			r.Route("/{computeID}", func(r chi.Router) {
				r.Get("/", h.GetCompute)
				r.Delete("/", h.DeleteCompute)
				r.Get("/ports", h.ComputePorts)
				r.Post("/auto_idlepc", h.AutoIdlePC)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Delete("/", h.DeleteProject)
				r.Post("/open", h.OpenProject)
				r.Post("/close", h.CloseProject)
			})
		})

		r.Route("/appliances", func(r chi.Router) {
			r.Get("/", h.ListAppliances)
			r.Post("/", h.CreateAppliance)
			r.Route("/{applianceID}", func(r chi.Router) {
				r.Get("/", h.GetAppliance)
				r.Put("/", h.UpdateAppliance)
				r.Delete("/", h.DeleteAppliance)
			})
		})

		r.Route("/appliance_templates", func(r chi.Router) {
			r.Get("/", h.ListApplianceTemplates)
			r.Post("/refresh", h.RefreshApplianceTemplates)
		})

		r.Get("/notifications", h.StreamNotifications)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"version":"` + controller.Version + `"}`))
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminmw "profreg/pkg/platform/middleware/admin"
)

// NewRouter wires the register endpoints. Admin routes sit behind the shared
// admin token; the public read view and health/metrics endpoints are open.
func NewRouter(h *Handler, adminToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(adminToken, h.logger))

		r.Post("/entities", h.CreateEntity)
		r.Get("/entities/{entityID}/versions", h.ListVersions)
		r.Post("/entities/{entityID}/versions", h.DeriveDraft)
		r.Post("/entities/{kind}/rename", h.Rename)

		r.Post("/versions/{versionID}/confirm", h.Confirm)
		r.Post("/versions/{versionID}/publish", h.Publish)
		r.Post("/versions/{versionID}/archive", h.Archive)
	})

	r.Get("/{kind}/{slug}", h.PublicRecord)

	return r
}

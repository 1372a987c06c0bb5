package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the facility routes, the health check and, when it is
// non-nil, the metrics handler. mw wraps every route, outermost first.
func NewRouter(h *Handler, metrics http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mw...)

	r.Get("/healthz", HandleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/facilities", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Post("/validate", h.HandleValidate)
		r.Put("/{facilityIdentifier}", h.HandleUpdate)
		r.Get("/{facilityIdentifier}/submissions", h.HandleSubmissions)
	})
	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/datatops/datatops/internal/api/middleware"
	"github.com/datatops/datatops/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil RateLimit disables rate limiting entirely.
type Dependencies struct {
	RateLimit *mw.RateLimit

	StatusHandler http.HandlerFunc
	HealthHandler http.HandlerFunc
	ProjectPost   http.HandlerFunc
	ProjectGet    http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public surface
	r.Get("/", orNotImplemented(deps.StatusHandler))
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Project routes. Credentials are extracted here, not checked: the POST
	// handler dispatches on their presence and the store/list handlers
	// decide what the key is worth.
	r.Route("/api/v1/projects/{name}", func(r chi.Router) {
		r.Use(mw.Credentials)
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/", orNotImplemented(deps.ProjectPost))
		r.Get("/", orNotImplemented(deps.ProjectGet))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

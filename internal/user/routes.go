package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the profile routes on r, which is expected to be
// mounted at /users next to the auth routes.
func RegisterRoutes(r chi.Router, handler *Handler, authenticate func(http.Handler) http.Handler) {
	r.Get("/", handler.List)
	r.Get("/{id}/name", handler.GetName)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", handler.Me)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
	})
}

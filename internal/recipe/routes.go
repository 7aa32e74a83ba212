package recipe

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the recipe routes on r, mounted at /recetas.
// optional attaches the caller when a valid token is present; authenticate
// requires one.
func RegisterRoutes(r chi.Router, handler *Handler, authenticate, optional func(http.Handler) http.Handler) {
	r.Get("/", handler.List)
	r.Get("/creator/{id}", handler.ListByCreator)
	r.With(optional).Get("/{id}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", handler.Create)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Post("/{id}/vote", handler.Vote)
	})
}

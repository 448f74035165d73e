package login

import "github.com/go-chi/chi/v5"

// Routes returns the router for the login endpoint.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.ServeLogin)
	return r
}

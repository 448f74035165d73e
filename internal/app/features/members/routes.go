package members

import (
	"github.com/go-chi/chi/v5"
	"github.com/unestilodevida/cellhub/internal/app/system/auth"
)

// Routes returns the router for member endpoints. Reads require a
// signed-in member; writes are restricted to admins.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/roles", h.ServeRoles)
	r.Get("/exists", h.ServeExists)
	r.Get("/leaders", h.ServeLeaders)
	r.Get("/assistants", h.ServeAssistants)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole("admin"))
		r.Post("/", h.ServeCreate)
		r.Put("/{id}", h.ServeUpdate)
		r.Delete("/{id}", h.ServeDeactivate)
	})

	// Password changes prove knowledge of the current password.
	r.Post("/{id}/password", h.ServeChangePassword)

	return r
}

package groups

import (
	"github.com/go-chi/chi/v5"
	"github.com/unestilodevida/cellhub/internal/app/system/auth"
)

// Routes returns the router for group endpoints. Reads require a
// signed-in member; writes are restricted to admins.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/weekdays", h.ServeWeekdays)
	r.Get("/genders", h.ServeGenders)
	r.Get("/member-assignment/{id}", h.ServeMemberAssignment)
	r.Get("/{id}", h.ServeGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole("admin"))
		r.Post("/", h.ServeCreate)
		r.Put("/{id}", h.ServeUpdate)
		r.Delete("/{id}", h.ServeDeactivate)
	})

	return r
}

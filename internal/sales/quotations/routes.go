package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// MountRoutes registers the quotation routes relative to /cotizaciones.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles())
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Get("/{id}/documento", h.document)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(shared.RoleAdmin))
		r.Patch("/{id}/estado", h.changeStatus)
	})
}

package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Handler wires HTTP endpoints for the stock card.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(shared.RoleAdmin))
		r.Get("/{productID}/movimientos", h.listMovements)
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid producto_id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limite"))
	movements, err := h.service.ListMovements(r.Context(), MovementFilter{ProductID: productID, Limit: limit})
	if err != nil {
		if httpx.IsInternal(err) {
			h.logger.Error("list stock movements", slog.Int64("product_id", productID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movimientos": movements})
}

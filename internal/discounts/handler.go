package discounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Handler exposes discount rule administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers admin-only discount routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(shared.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.publish)
		r.Get("/vigentes", h.current)
		r.Delete("/{id}", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var typ *pricing.RuleType
	if raw := r.URL.Query().Get("tipo"); raw != "" {
		t := pricing.RuleType(raw)
		typ = &t
	}
	rules, err := h.service.ListRules(r.Context(), typ)
	if err != nil {
		h.fail(w, "list discount rules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reglas": nonNil(rules)})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.CurrentRules(r.Context())
	if err != nil {
		h.fail(w, "current discount rules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reglas": nonNil(pricing.CurrentRules(rules))})
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	var in PublishInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	rule, err := h.service.Publish(r.Context(), principal, in)
	if err != nil {
		h.fail(w, "publish discount rule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rule)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	rule, err := h.service.Deactivate(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "deactivate discount rule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rule)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func nonNil(rules []pricing.Rule) []pricing.Rule {
	if rules == nil {
		return []pricing.Rule{}
	}
	return rules
}

package orders

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// IdempotencyHeader optionally deduplicates payment attempts.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the order API.
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

// MountRoutes registers the order routes relative to /pedidos. Status
// permissions depend on the order, so they are enforced by the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles())
		r.Get("/", h.list)
		r.Post("/", h.createDirect)
		r.Post("/desde-cotizacion", h.createFromQuotation)
		r.Get("/{id}", h.show)
		r.Patch("/{id}/estado", h.updateStatus)
		r.Post("/{id}/pago", h.pay)
	})
}

func (h *Handler) createDirect(w http.ResponseWriter, r *http.Request) {
	var req CreateDirectRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	order, err := h.service.CreateDirect(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) createFromQuotation(w http.ResponseWriter, r *http.Request) {
	var req CreateFromQuotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	order, err := h.service.CreateFromQuotation(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "convert quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, limit, offset := shared.PageFromQuery(query)
	filter := ListFilter{Limit: limit, Offset: offset}
	if raw := query.Get("estado"); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	for name, target := range map[string]**time.Time{"desde": &filter.From, "hasta": &filter.To} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+": expected 2006-01-02")
			return
		}
		if name == "hasta" {
			t = t.Add(24 * time.Hour)
		}
		*target = &t
	}

	principal, _ := shared.PrincipalFromContext(r.Context())
	orders, total, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"pedidos":    orders,
		"paginacion": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	order, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	order, err := h.service.UpdateStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		h.fail(w, "update order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.ProcessPayment(r.Context(), principal, id, req.CardNumber, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, "process payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid order id %q", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

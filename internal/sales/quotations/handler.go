package quotations

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

const dateLayout = "2006-01-02"

// Handler serves the quotation API.
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

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	quote, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "create quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, limit, offset := shared.PageFromQuery(query)
	filter := ListFilter{Limit: limit, Offset: offset}
	if raw := query.Get("estado_gestion"); raw != "" {
		status := ManagementStatus(raw)
		filter.ManagementStatus = &status
	}
	if raw := query.Get("estado_vigencia"); raw != "" {
		validity := Validity(raw)
		filter.Validity = &validity
	}
	var err error
	if filter.From, err = parseDate(query.Get("desde")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "desde: "+err.Error())
		return
	}
	if filter.To, err = parseDate(query.Get("hasta")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "hasta: "+err.Error())
		return
	}
	if filter.To != nil {
		// hasta is inclusive.
		end := filter.To.Add(24 * time.Hour)
		filter.To = &end
	}

	principal, _ := shared.PrincipalFromContext(r.Context())
	quotes, total, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.fail(w, "list quotations", err)
		return
	}
	if quotes == nil {
		quotes = []Quotation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"cotizaciones": quotes,
		"paginacion":   shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	quote, err := h.service.Detail(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	quote, err := h.service.ChangeManagementStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		h.fail(w, "change quotation status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	if r.URL.Query().Get("format") == "json" {
		doc, err := h.service.Document(r.Context(), principal, id)
		if err != nil {
			h.fail(w, "quotation document", err)
			return
		}
		httpx.JSON(w, http.StatusOK, doc)
		return
	}
	pdf, err := h.service.ExportDocument(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "export quotation", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=cotizacion-%d.pdf", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quotation id")
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

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("expected %s", dateLayout)
	}
	return &t, nil
}

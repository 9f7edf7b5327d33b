package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// maxLookup caps the ids accepted by one batch lookup.
const maxLookup = 100

// Reader is the product lookup surface served over HTTP.
type Reader interface {
	Get(ctx context.Context, id int64) (Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// ProductView is a product with its reconciled unit split.
type ProductView struct {
	Product
	UnitSplit pricing.Split `json:"desglose"`
}

func newView(p Product) ProductView {
	return ProductView{Product: p, UnitSplit: p.Split()}
}

// Handler exposes read-only product lookups.
type Handler struct {
	logger *slog.Logger
	reader Reader
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, reader Reader) *Handler {
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.lookup)
	r.Get("/{id}", h.get)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid producto id")
		return
	}
	p, err := h.reader.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newView(p))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	found, err := h.reader.GetMany(r.Context(), ids)
	if err != nil {
		h.fail(w, err)
		return
	}
	views := make([]ProductView, 0, len(found))
	missing := []int64{}
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		views = append(views, newView(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"productos": views, "no_encontrados": missing})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error("catalog lookup", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// parseIDs reads a comma separated id list, dropping duplicates and keeping
// the first-seen order.
func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: ids required", shared.ErrValidation)
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid id %q", shared.ErrValidation, part)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) > maxLookup {
		return nil, fmt.Errorf("%w: at most %d ids", shared.ErrValidation, maxLookup)
	}
	return ids, nil
}

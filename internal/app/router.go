package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ferreexpress/ferreexpress/internal/auth"
	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/discounts"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/observability"
	"github.com/ferreexpress/ferreexpress/internal/platform/httpx"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/sales/orders"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
	"github.com/ferreexpress/ferreexpress/jobs"
	"github.com/ferreexpress/ferreexpress/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Auth    *auth.Middleware
	RBAC    rbac.Middleware

	CatalogHandler    *catalog.Handler
	QuotationsHandler *quotations.Handler
	OrdersHandler     *orders.Handler
	DiscountsHandler  *discounts.Handler
	InventoryHandler  *inventory.Handler
	ReportHandler     *report.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with FerreExpress defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		if params.CatalogHandler != nil {
			r.Route("/productos", params.CatalogHandler.MountRoutes)
		}
		if params.QuotationsHandler != nil {
			r.Route("/cotizaciones", params.QuotationsHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/pedidos", params.OrdersHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.DiscountsHandler != nil {
				r.Route("/descuentos", params.DiscountsHandler.MountRoutes)
			}
			if params.InventoryHandler != nil {
				r.Route("/inventario", params.InventoryHandler.MountRoutes)
			}
			if params.ReportHandler != nil {
				r.With(params.RBAC.RequireRoles(shared.RoleAdmin)).Route("/reportes", params.ReportHandler.MountRoutes)
			}
		})
	})

	return r
}

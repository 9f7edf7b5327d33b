package quotations

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreexpress/ferreexpress/internal/auth"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/rbac"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

type apiFixture struct {
	*fixture
	router http.Handler
	tokens *auth.Tokens
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	f := newFixture([]pricing.Rule{bulkRule(12, 10)}, hammer, nails)
	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: "test-secret", Issuer: "ferreexpress", TTL: time.Hour})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Use(auth.NewMiddleware(tokens, logger).Authenticate)
	r.Route("/cotizaciones", NewHandler(logger, f.service, rbac.Middleware{Logger: logger}).MountRoutes)
	return &apiFixture{fixture: f, router: r, tokens: tokens}
}

func (a *apiFixture) do(t *testing.T, p shared.Principal, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	token, err := a.tokens.Mint(p, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func TestCreateEndpoint(t *testing.T) {
	api := newAPI(t)

	rr := api.do(t, customer, http.MethodPost, "/cotizaciones", `{"lineas":[{"producto_id":1,"cantidad":15}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "PENDIENTE", body["estado_gestion"])
	assert.Equal(t, "VIGENTE", body["estado_vigencia"])
	assert.Equal(t, 17850.0, body["descuento"])
	assert.Equal(t, 160650.0, body["total"])
}

func TestCreateEndpointValidation(t *testing.T) {
	api := newAPI(t)

	cases := map[string]string{
		"non numeric quantity": `{"lineas":[{"producto_id":1,"cantidad":"abc"}]}`,
		"zero quantity":        `{"lineas":[{"producto_id":1,"cantidad":0}]}`,
		"oversized quantity":   `{"lineas":[{"producto_id":1,"cantidad":3000000000}]}`,
		"no lines":             `{"lineas":[]}`,
		"unknown field":        `{"lineas":[{"producto_id":1,"cantidad":1}],"extra":true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := api.do(t, customer, http.MethodPost, "/cotizaciones", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}

	rr := api.do(t, customer, http.MethodPost, "/cotizaciones", `{"lineas":[{"producto_id":77,"cantidad":1}]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusEndpointRequiresAdmin(t *testing.T) {
	api := newAPI(t)
	rr := api.do(t, customer, http.MethodPost, "/cotizaciones", `{"lineas":[{"producto_id":1,"cantidad":1}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, customer, http.MethodPatch, "/cotizaciones/1/estado", `{"estado_gestion":"ACEPTADA"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, admin, http.MethodPatch, "/cotizaciones/1/estado", `{"estado_gestion":"CONVERTIDA"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, admin, http.MethodPatch, "/cotizaciones/1/estado", `{"estado_gestion":"ACEPTADA"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"estado_gestion":"ACEPTADA"`)
}

func TestListAndShowEndpoints(t *testing.T) {
	api := newAPI(t)
	rr := api.do(t, customer, http.MethodPost, "/cotizaciones", `{"lineas":[{"producto_id":1,"cantidad":1},{"producto_id":2,"cantidad":3}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, customer, http.MethodGet, "/cotizaciones?estado_gestion=PENDIENTE&desde=2025-03-01&hasta=2025-03-01", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var list struct {
		Quotations []Quotation        `json:"cotizaciones"`
		Pagination shared.Pagination `json:"paginacion"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Quotations, 1)
	assert.Equal(t, 1, list.Pagination.Total)

	rr = api.do(t, customer, http.MethodGet, "/cotizaciones?desde=ayer", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, other, http.MethodGet, "/cotizaciones/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, customer, http.MethodGet, "/cotizaciones/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var detail Quotation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	require.Len(t, detail.Lines, 2)
	assert.Equal(t, pricing.Split{Base: 2000, Tax: 380}, detail.Lines[1].Split)
}

func TestDocumentEndpoint(t *testing.T) {
	api := newAPI(t)
	api.service.renderer = &stubRenderer{}
	rr := api.do(t, customer, http.MethodPost, "/cotizaciones", `{"lineas":[{"producto_id":1,"cantidad":1}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, customer, http.MethodGet, "/cotizaciones/1/documento", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "cotizacion-1.pdf")

	rr = api.do(t, customer, http.MethodGet, "/cotizaciones/1/documento?format=json", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"empresa":{"nombre":"FerreExpress"`)
}

func TestUnauthenticatedRequest(t *testing.T) {
	api := newAPI(t)
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cotizaciones", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: cantidad", shared.ErrValidation), http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrForbiddenTransition, http.StatusForbidden},
		{fmt.Errorf("pedido 9: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrInsufficientStock, http.StatusConflict},
		{shared.ErrQuotationNotConvertible, http.StatusConflict},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		assert.Equal(t, tc.status == http.StatusInternalServerError, IsInternal(tc.err))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("pq: password authentication failed"))
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Empty(t, body.Detail)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Quantity int `json:"cantidad"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cantidad":2,"precio":1}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cantidad":2}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	assert.Equal(t, 2, target.Quantity)
}

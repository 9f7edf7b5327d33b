// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrForbiddenTransition):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrQuotationNotConvertible):
		Problem(w, http.StatusConflict, "Quotation Not Convertible", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsInternal reports whether RespondError would hide err behind a 500.
func IsInternal(err error) bool {
	for _, known := range []error{
		shared.ErrValidation,
		shared.ErrUnauthorized,
		shared.ErrForbiddenTransition,
		shared.ErrNotFound,
		shared.ErrInsufficientStock,
		shared.ErrQuotationNotConvertible,
		shared.ErrIdempotencyConflict,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

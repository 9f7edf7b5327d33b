package shared

import "errors"

var (
	// ErrValidation indicates malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the resource does not exist or is outside the caller's ownership.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a debit larger than the locked stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrForbiddenTransition indicates a state change the caller may not perform.
	ErrForbiddenTransition = errors.New("forbidden transition")
	// ErrQuotationNotConvertible indicates a quotation that cannot become an order.
	ErrQuotationNotConvertible = errors.New("quotation not convertible")
	// ErrUnauthorized indicates a missing or invalid principal.
	ErrUnauthorized = errors.New("unauthorized")
)

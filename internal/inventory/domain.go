package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates stock ledger directions.
type MovementType string

const (
	// MovementOut decrements stock, e.g. an order line.
	MovementOut MovementType = "SALIDA"
	// MovementIn increments stock, e.g. a cancelled order line.
	MovementIn MovementType = "ENTRADA"
)

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// Balance is the locked stock of one product.
type Balance struct {
	ProductID int64
	Stock     int
}

// Movement is one stock card entry.
type Movement struct {
	ID        int64        `json:"id"`
	Code      string       `json:"codigo"`
	ProductID int64        `json:"producto_id"`
	Type      MovementType `json:"tipo"`
	Quantity  int          `json:"cantidad"`
	Balance   int          `json:"saldo"`
	RefModule string       `json:"ref_modulo"`
	RefID     string       `json:"ref_id"`
	CreatedAt time.Time    `json:"creado_en"`
}

// MovementInput describes a debit or credit request.
type MovementInput struct {
	ProductID int64
	Quantity  int
	RefModule string
	RefID     string
}

// MovementFilter narrows stock card listings.
type MovementFilter struct {
	ProductID int64
	Limit     int
}

// Package catalog reads products for pricing and stock decisions. Product
// CRUD lives elsewhere; this package never writes product rows except
// through the inventory ledger.
package catalog

import "github.com/ferreexpress/ferreexpress/internal/pricing"

// Product is the read model used by quotations and orders.
type Product struct {
	ID        int64    `json:"id"`
	Name      string   `json:"nombre"`
	Price     float64  `json:"precio"`
	BasePrice *float64 `json:"precio_base,omitempty"`
	TaxAmount *float64 `json:"impuesto,omitempty"`
	Stock     int      `json:"stock"`
	Active    bool     `json:"activo"`
}

// Split returns the current base/tax split of one unit.
func (p Product) Split() pricing.Split {
	return pricing.SplitTax(p.Price, p.BasePrice, p.TaxAmount)
}

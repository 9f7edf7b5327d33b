package quotations

import (
	"time"

	"github.com/ferreexpress/ferreexpress/internal/pricing"
)

// ManagementStatus is the administrative state of a quotation.
type ManagementStatus string

const (
	StatusPending   ManagementStatus = "PENDIENTE"
	StatusAccepted  ManagementStatus = "ACEPTADA"
	StatusRejected  ManagementStatus = "RECHAZADA"
	StatusConverted ManagementStatus = "CONVERTIDA"
)

// Valid reports whether s is a known management status.
func (s ManagementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusConverted:
		return true
	}
	return false
}

// Validity is derived from the deadline; the stored copy is reconciled on read.
type Validity string

const (
	ValidityValid   Validity = "VIGENTE"
	ValidityExpired Validity = "VENCIDA"
)

// Valid reports whether v is a known validity status.
func (v Validity) Valid() bool {
	return v == ValidityValid || v == ValidityExpired
}

// Quotation is a priced, non-binding offer.
type Quotation struct {
	ID               int64            `json:"id"`
	OwnerID          int64            `json:"usuario_id"`
	BaseTotal        float64          `json:"subtotal_base"`
	TaxTotal         float64          `json:"impuesto_total"`
	Discount         float64          `json:"descuento"`
	Total            float64          `json:"total"`
	DiscountRate     float64          `json:"porcentaje_descuento"`
	DiscountRule     *int64           `json:"regla_descuento_id,omitempty"`
	ManagementStatus ManagementStatus `json:"estado_gestion"`
	Validity         Validity         `json:"estado_vigencia"`
	ValidUntil       time.Time        `json:"fecha_vigencia"`
	CreatedAt        time.Time        `json:"fecha_creacion"`
	Lines            []Line           `json:"lineas,omitempty"`
}

// ValidityAt derives the validity status at now.
func (q Quotation) ValidityAt(now time.Time) Validity {
	if q.ValidUntil.Before(now) {
		return ValidityExpired
	}
	return ValidityValid
}

// Convertible reports whether an order may be created from q at now.
func (q Quotation) Convertible(now time.Time) bool {
	return q.ManagementStatus == StatusAccepted && q.ValidityAt(now) == ValidityValid
}

// Line is a frozen quotation line.
type Line struct {
	ID          int64         `json:"id"`
	QuotationID int64         `json:"cotizacion_id"`
	ProductID   int64         `json:"producto_id"`
	ProductName string        `json:"nombre,omitempty"`
	Quantity    int           `json:"cantidad"`
	UnitPrice   float64       `json:"precio_unitario"`
	Subtotal    float64       `json:"subtotal"`
	Split       pricing.Split `json:"desglose"`

	// BaseUnit and TaxUnit are the split frozen at creation; nil on rows
	// written before the columns existed.
	BaseUnit *float64 `json:"-"`
	TaxUnit  *float64 `json:"-"`
	// ProductBase and ProductTax are the product's current pre-split values.
	ProductBase *float64 `json:"-"`
	ProductTax  *float64 `json:"-"`
}

// ResolveSplit fills Split from the frozen values, falling back to the
// product's current pre-split values for legacy rows.
func (l *Line) ResolveSplit() {
	if l.BaseUnit != nil && l.TaxUnit != nil {
		l.Split = pricing.Split{Base: *l.BaseUnit, Tax: *l.TaxUnit}
		return
	}
	l.Split = pricing.SplitTax(l.UnitPrice, l.ProductBase, l.ProductTax)
}

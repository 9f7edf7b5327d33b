package orders

import "time"

// LineRequest is one requested product.
type LineRequest struct {
	ProductID int64 `json:"producto_id" validate:"required,gt=0"`
	Quantity  int   `json:"cantidad" validate:"required,gt=0,lte=100000"`
}

// Checkout carries the delivery and payment choices shared by both
// creation paths.
type Checkout struct {
	AddressID     *int64        `json:"direccion_id,omitempty" validate:"omitempty,gt=0"`
	PaymentMethod PaymentMethod `json:"metodo_pago" validate:"required,oneof=CONTRA_ENTREGA EN_LINEA"`
	DeliveryMode  *DeliveryMode `json:"modo_entrega,omitempty" validate:"omitempty,oneof=DOMICILIO RECOGER_EN_TIENDA"`
}

// CreateDirectRequest checks out a cart.
type CreateDirectRequest struct {
	Checkout
	Lines []LineRequest `json:"lineas" validate:"required,min=1,dive"`
}

// CreateFromQuotationRequest converts an accepted quotation.
type CreateFromQuotationRequest struct {
	Checkout
	QuotationID int64 `json:"cotizacion_id" validate:"required,gt=0"`
}

// StatusRequest moves an order through its lifecycle.
type StatusRequest struct {
	Status Status `json:"estado" validate:"required"`
}

// PaymentRequest carries the simulated card.
type PaymentRequest struct {
	CardNumber string `json:"numero_tarjeta" validate:"required"`
}

// ListFilter narrows order listings. OwnerID nil means all owners.
type ListFilter struct {
	OwnerID *int64
	Status  *Status
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

package orders

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDIENTE"
	StatusConfirmed Status = "CONFIRMADO"
	StatusShipped   Status = "ENVIADO"
	StatusDelivered Status = "ENTREGADO"
	StatusCancelled Status = "CANCELADO"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CONTRA_ENTREGA"
	PaymentOnline         PaymentMethod = "EN_LINEA"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentOnline
}

// DeliveryMode is how the goods reach the customer.
type DeliveryMode string

const (
	DeliveryHome        DeliveryMode = "DOMICILIO"
	DeliveryStorePickup DeliveryMode = "RECOGER_EN_TIENDA"
)

// Valid reports whether m is a known delivery mode.
func (m DeliveryMode) Valid() bool {
	return m == DeliveryHome || m == DeliveryStorePickup
}

// Order is a binding purchase.
type Order struct {
	ID            int64         `json:"id"`
	QuotationID   *int64        `json:"cotizacion_id,omitempty"`
	OwnerID       int64         `json:"usuario_id"`
	AddressID     *int64        `json:"direccion_id,omitempty"`
	PaymentMethod PaymentMethod `json:"metodo_pago"`
	DeliveryMode  *DeliveryMode `json:"modo_entrega,omitempty"`
	ShippingCost  float64       `json:"costo_envio"`
	Total         float64       `json:"total"`
	Status        Status        `json:"estado"`
	ShippedAt     *time.Time    `json:"fecha_envio,omitempty"`
	DeliveredAt   *time.Time    `json:"fecha_entrega,omitempty"`
	CreatedAt     time.Time     `json:"fecha_creacion"`
	Lines         []Line        `json:"lineas,omitempty"`
}

// Line is a frozen order line.
type Line struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"pedido_id"`
	ProductID   int64   `json:"producto_id"`
	ProductName string  `json:"nombre,omitempty"`
	Quantity    int     `json:"cantidad"`
	UnitPrice   float64 `json:"precio_unitario"`
	Subtotal    float64 `json:"subtotal"`
}

// PaymentResult is returned for approved and rejected payments alike.
type PaymentResult struct {
	Approved  bool   `json:"aprobado"`
	Message   string `json:"mensaje"`
	Reference string `json:"referencia,omitempty"`
	Status    Status `json:"estado"`
}

package quotations

import "time"

// LineRequest is one requested product.
type LineRequest struct {
	ProductID int64 `json:"producto_id" validate:"required,gt=0"`
	Quantity  int   `json:"cantidad" validate:"required,gt=0,lte=100000"`
}

// CreateRequest is the quotation creation payload.
type CreateRequest struct {
	Lines []LineRequest `json:"lineas" validate:"required,min=1,dive"`
}

// StatusRequest changes the management status.
type StatusRequest struct {
	Status ManagementStatus `json:"estado_gestion" validate:"required,oneof=ACEPTADA RECHAZADA"`
}

// ListFilter narrows quotation listings. OwnerID nil means all owners.
type ListFilter struct {
	OwnerID          *int64
	ManagementStatus *ManagementStatus
	Validity         *Validity
	From             *time.Time
	To               *time.Time
	Limit            int
	Offset           int
}

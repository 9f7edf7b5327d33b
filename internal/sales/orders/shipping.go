package orders

import (
	"fmt"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// DefaultShippingFee is charged when no fee is configured.
const DefaultShippingFee = 10000

// ShippingCost validates the checkout combination and returns the fee owed.
// Cash on delivery always ships; online orders ship only to a home address.
func ShippingCost(c Checkout, fee float64) (float64, error) {
	if !c.PaymentMethod.Valid() {
		return 0, fmt.Errorf("%w: unknown metodo_pago %q", shared.ErrValidation, c.PaymentMethod)
	}
	if c.DeliveryMode != nil && !c.DeliveryMode.Valid() {
		return 0, fmt.Errorf("%w: unknown modo_entrega %q", shared.ErrValidation, *c.DeliveryMode)
	}
	if c.PaymentMethod == PaymentCashOnDelivery {
		return fee, nil
	}
	if c.DeliveryMode == nil {
		return 0, fmt.Errorf("%w: modo_entrega is required for online payment", shared.ErrValidation)
	}
	if *c.DeliveryMode == DeliveryStorePickup {
		return 0, nil
	}
	return fee, nil
}

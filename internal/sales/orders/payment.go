package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// ChargeRequest is what the gateway sees of a payment.
type ChargeRequest struct {
	OrderID    int64
	Amount     float64
	CardNumber string
}

// ChargeDecision is the gateway verdict.
type ChargeDecision struct {
	Approved  bool
	Reference string
}

// PaymentGateway decides whether a charge is approved.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeDecision, error)
}

var referenceNamespace = uuid.MustParse("6f1c3f0e-5b0e-4f5e-9d53-2a4f1b7f2c11")

// ParityGateway is the simulated gateway: a card number whose last digit is
// even is approved, odd is declined.
type ParityGateway struct{}

// Charge implements PaymentGateway.
func (ParityGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeDecision, error) {
	digits, err := normalizeCard(req.CardNumber)
	if err != nil {
		return ChargeDecision{}, err
	}
	last := int(digits[len(digits)-1] - '0')
	if last%2 != 0 {
		return ChargeDecision{}, nil
	}
	ref := uuid.NewSHA1(referenceNamespace, []byte(strconv.FormatInt(req.OrderID, 10)+":"+digits[len(digits)-4:]))
	return ChargeDecision{Approved: true, Reference: "PAY-" + strings.ToUpper(ref.String()[:13])}, nil
}

// normalizeCard strips separators and checks the card is 12 to 19 digits.
func normalizeCard(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, raw)
	if len(digits) < 12 || len(digits) > 19 {
		return "", fmt.Errorf("%w: card number must have 12 to 19 digits", shared.ErrValidation)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: card number must be numeric", shared.ErrValidation)
		}
	}
	return digits, nil
}

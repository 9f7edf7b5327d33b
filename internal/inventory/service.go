package inventory

import (
	"context"
	"fmt"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// MovementReader lists stock card entries.
type MovementReader interface {
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes stock card reads.
type Service struct {
	repo MovementReader
}

// NewService builds Service.
func NewService(repo MovementReader) *Service {
	return &Service{repo: repo}
}

// ListMovements returns the stock card of a product.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID <= 0 {
		return nil, fmt.Errorf("%w: producto_id required", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, filter)
}

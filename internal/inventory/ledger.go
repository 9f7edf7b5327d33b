package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// TxRepository exposes the row-locked operations the ledger needs inside an
// enclosing transaction.
type TxRepository interface {
	LockBalance(ctx context.Context, productID int64) (Balance, error)
	UpdateStock(ctx context.Context, productID int64, stock int) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Ledger debits and credits stock. It never opens transactions itself; the
// caller owns the transaction so stock changes commit or roll back together
// with the order rows.
type Ledger struct {
	clock func() time.Time
}

// NewLedger constructs Ledger.
func NewLedger() *Ledger {
	return &Ledger{clock: func() time.Time { return time.Now().UTC() }}
}

// Debit re-reads stock under the row lock and decrements it.
func (l *Ledger) Debit(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	if in.Quantity <= 0 {
		return Movement{}, fmt.Errorf("%w: %v", shared.ErrValidation, ErrInvalidQuantity)
	}
	bal, err := tx.LockBalance(ctx, in.ProductID)
	if err != nil {
		return Movement{}, err
	}
	if bal.Stock < in.Quantity {
		return Movement{}, fmt.Errorf("%w: product %d has %d, requested %d", shared.ErrInsufficientStock, in.ProductID, bal.Stock, in.Quantity)
	}
	return l.apply(ctx, tx, bal, MovementOut, in)
}

// Credit increments stock. It fails only when the product row is gone or the
// datastore errors.
func (l *Ledger) Credit(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	if in.Quantity <= 0 {
		return Movement{}, fmt.Errorf("%w: %v", shared.ErrValidation, ErrInvalidQuantity)
	}
	bal, err := tx.LockBalance(ctx, in.ProductID)
	if err != nil {
		return Movement{}, err
	}
	return l.apply(ctx, tx, bal, MovementIn, in)
}

func (l *Ledger) apply(ctx context.Context, tx TxRepository, bal Balance, typ MovementType, in MovementInput) (Movement, error) {
	newStock := bal.Stock + in.Quantity
	if typ == MovementOut {
		newStock = bal.Stock - in.Quantity
	}
	if err := tx.UpdateStock(ctx, in.ProductID, newStock); err != nil {
		return Movement{}, err
	}
	m := Movement{
		Code:      "MOV-" + uuid.NewString(),
		ProductID: in.ProductID,
		Type:      typ,
		Quantity:  in.Quantity,
		Balance:   newStock,
		RefModule: in.RefModule,
		RefID:     in.RefID,
		CreatedAt: l.clock(),
	}
	id, err := tx.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, err
	}
	m.ID = id
	return m, nil
}

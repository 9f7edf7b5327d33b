package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// LockMode selects the row lock taken when reading a product.
type LockMode int

const (
	LockNone LockMode = iota
	LockShare
	LockUpdate
)

func (m LockMode) clause() string {
	switch m {
	case LockShare:
		return " FOR SHARE"
	case LockUpdate:
		return " FOR UPDATE"
	}
	return ""
}

const selectProduct = `SELECT id, name, price, base_price, tax_amount, stock, active FROM products`

// Repository reads products from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns an active product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return Find(ctx, r.pool, id, LockNone)
}

// GetMany returns the active products among ids keyed by id.
func (r *Repository) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.pool.Query(ctx, selectProduct+` WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// Find reads one active product through q, taking the requested row lock
// when q is a transaction.
func Find(ctx context.Context, q db.DBTX, id int64, mode LockMode) (Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, selectProduct+` WHERE id = $1`+mode.clause(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return Product{}, err
	}
	if !p.Active {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.BasePrice, &p.TaxAmount, &p.Stock, &p.Active)
	return p, err
}

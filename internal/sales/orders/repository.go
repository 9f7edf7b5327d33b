package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferreexpress/ferreexpress/internal/addresses"
	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Repository persists orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// TxRepository is the transactional view used by writes. It embeds the
// stock ledger operations so the ledger runs inside the order transaction.
type TxRepository interface {
	inventory.TxRepository
	LockProduct(ctx context.Context, id int64) (catalog.Product, error)
	EnsureAddress(ctx context.Context, addressID, userID int64) error
	LockQuotation(ctx context.Context, id int64) (quotations.Quotation, error)
	MarkQuotationConverted(ctx context.Context, id int64) error
	Insert(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *Line) error
	Lock(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, o Order) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

const selectOrder = `SELECT id, quotation_id, user_id, address_id, payment_method, delivery_mode, shipping_cost, total,
	status, shipped_at, delivered_at, created_at FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.QuotationID, &o.OwnerID, &o.AddressID, &o.PaymentMethod, &o.DeliveryMode, &o.ShippingCost, &o.Total,
		&o.Status, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt)
	return o, err
}

func findOrder(ctx context.Context, q db.DBTX, id int64, lock bool) (Order, error) {
	query := selectOrder + ` WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		return Order{}, err
	}
	o.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	return findOrder(ctx, r.pool, id, false)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filter.OwnerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", selectOrder, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

func (r *txRepository) LockProduct(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.Find(ctx, r.tx, id, catalog.LockUpdate)
}

func (r *txRepository) EnsureAddress(ctx context.Context, addressID, userID int64) error {
	return addresses.EnsureOwned(ctx, r.tx, addressID, userID)
}

func (r *txRepository) LockQuotation(ctx context.Context, id int64) (quotations.Quotation, error) {
	return quotations.LockForConversion(ctx, r.tx, id)
}

func (r *txRepository) MarkQuotationConverted(ctx context.Context, id int64) error {
	return quotations.MarkConverted(ctx, r.tx, id)
}

func (r *txRepository) Insert(ctx context.Context, o *Order) error {
	return r.tx.QueryRow(ctx, `INSERT INTO orders (quotation_id, user_id, address_id, payment_method, delivery_mode, shipping_cost, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		o.QuotationID, o.OwnerID, o.AddressID, o.PaymentMethod, o.DeliveryMode, o.ShippingCost, o.Total, o.Status, o.CreatedAt,
	).Scan(&o.ID)
}

func (r *txRepository) InsertLine(ctx context.Context, l *Line) error {
	return r.tx.QueryRow(ctx, `INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal,
	).Scan(&l.ID)
}

func (r *txRepository) Lock(ctx context.Context, id int64) (Order, error) {
	return findOrder(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateStatus(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, shipped_at = $3, delivered_at = $4 WHERE id = $1`,
		o.ID, o.Status, o.ShippedAt, o.DeliveredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, o.ID)
	}
	return nil
}

func loadLines(ctx context.Context, q db.DBTX, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.order_id, l.product_id, p.name, l.quantity, l.unit_price, l.subtotal
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1
		ORDER BY l.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}


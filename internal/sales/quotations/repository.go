package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Repository persists quotations.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	// ExpireStale flips every overdue VIGENTE quotation, optionally scoped to
	// one owner, and reports how many rows changed.
	ExpireStale(ctx context.Context, ownerID *int64, now time.Time) (int64, error)
	// ExpireOne flips a single overdue quotation; false means nothing changed.
	ExpireOne(ctx context.Context, id int64, now time.Time) (bool, error)
}

// TxRepository is the transactional view used by writes.
type TxRepository interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
	Insert(ctx context.Context, q *Quotation) error
	InsertLine(ctx context.Context, l *Line) error
	Lock(ctx context.Context, id int64) (Quotation, error)
	SetManagementStatus(ctx context.Context, id int64, status ManagementStatus) error
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
		return fn(ctx, &txRepository{tx: tx})
	})
}

const selectQuotation = `SELECT id, user_id, base_total, tax_total, discount, total, discount_rate, discount_rule_id,
	management_status, validity, valid_until, created_at FROM quotations`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	err := row.Scan(&q.ID, &q.OwnerID, &q.BaseTotal, &q.TaxTotal, &q.Discount, &q.Total, &q.DiscountRate, &q.DiscountRule,
		&q.ManagementStatus, &q.Validity, &q.ValidUntil, &q.CreatedAt)
	return q, err
}

func (r *repository) Get(ctx context.Context, id int64) (Quotation, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx, selectQuotation+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		return Quotation{}, err
	}
	q.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filter.OwnerID)
		argPos++
	}
	if filter.ManagementStatus != nil {
		conditions = append(conditions, fmt.Sprintf("management_status = $%d", argPos))
		args = append(args, *filter.ManagementStatus)
		argPos++
	}
	if filter.Validity != nil {
		conditions = append(conditions, fmt.Sprintf("validity = $%d", argPos))
		args = append(args, *filter.Validity)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quotations"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", selectQuotation, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) ExpireStale(ctx context.Context, ownerID *int64, now time.Time) (int64, error) {
	query := `UPDATE quotations SET validity = 'VENCIDA' WHERE validity = 'VIGENTE' AND valid_until < $1`
	args := []any{now}
	if ownerID != nil {
		query += ` AND user_id = $2`
		args = append(args, *ownerID)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ExpireOne(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE quotations SET validity = 'VENCIDA' WHERE id = $1 AND validity = 'VIGENTE' AND valid_until < $2`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Product(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.Find(ctx, r.tx, id, catalog.LockShare)
}

func (r *txRepository) Insert(ctx context.Context, q *Quotation) error {
	return r.tx.QueryRow(ctx, `INSERT INTO quotations (user_id, base_total, tax_total, discount, total, discount_rate, discount_rule_id,
		management_status, validity, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		q.OwnerID, q.BaseTotal, q.TaxTotal, q.Discount, q.Total, q.DiscountRate, q.DiscountRule,
		q.ManagementStatus, q.Validity, q.ValidUntil, q.CreatedAt,
	).Scan(&q.ID)
}

func (r *txRepository) InsertLine(ctx context.Context, l *Line) error {
	return r.tx.QueryRow(ctx, `INSERT INTO quotation_lines (quotation_id, product_id, quantity, unit_price, subtotal, base_unit, tax_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		l.QuotationID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal, l.BaseUnit, l.TaxUnit,
	).Scan(&l.ID)
}

func (r *txRepository) Lock(ctx context.Context, id int64) (Quotation, error) {
	return LockForConversion(ctx, r.tx, id)
}

func (r *txRepository) SetManagementStatus(ctx context.Context, id int64, status ManagementStatus) error {
	return setManagementStatus(ctx, r.tx, id, status)
}

// LockForConversion reads a quotation and its lines with the quotation row
// locked FOR UPDATE. q must be a transaction.
func LockForConversion(ctx context.Context, q db.DBTX, id int64) (Quotation, error) {
	quote, err := scanQuotation(q.QueryRow(ctx, selectQuotation+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		return Quotation{}, err
	}
	quote.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return Quotation{}, err
	}
	return quote, nil
}

// MarkConverted flips an accepted quotation to CONVERTIDA inside the order
// transaction.
func MarkConverted(ctx context.Context, q db.DBTX, id int64) error {
	return setManagementStatus(ctx, q, id, StatusConverted)
}

func setManagementStatus(ctx context.Context, q db.DBTX, id int64, status ManagementStatus) error {
	tag, err := q.Exec(ctx, `UPDATE quotations SET management_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return nil
}

func loadLines(ctx context.Context, q db.DBTX, quotationID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.quotation_id, l.product_id, p.name, l.quantity, l.unit_price, l.subtotal,
		l.base_unit, l.tax_unit, p.base_price, p.tax_amount
		FROM quotation_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.quotation_id = $1
		ORDER BY l.id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal,
			&l.BaseUnit, &l.TaxUnit, &l.ProductBase, &l.ProductTax); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

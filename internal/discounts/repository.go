package discounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Repository persists versioned discount rules.
type Repository interface {
	ListCurrent(ctx context.Context) ([]pricing.Rule, error)
	List(ctx context.Context, typ *pricing.RuleType) ([]pricing.Rule, error)
	Publish(ctx context.Context, in PublishInput) (pricing.Rule, error)
	Deactivate(ctx context.Context, id int64) (pricing.Rule, error)
}

const selectRule = `SELECT id, type, quantity_threshold, item_threshold, percentage, active, version, updated_at FROM discount_rules`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// ListCurrent derives the current rule per type as the highest active version.
func (r *repository) ListCurrent(ctx context.Context) ([]pricing.Rule, error) {
	return r.query(ctx, `SELECT DISTINCT ON (type) id, type, quantity_threshold, item_threshold, percentage, active, version, updated_at
		FROM discount_rules WHERE active ORDER BY type, version DESC, updated_at DESC`)
}

func (r *repository) List(ctx context.Context, typ *pricing.RuleType) ([]pricing.Rule, error) {
	if typ != nil {
		return r.query(ctx, selectRule+` WHERE type = $1 ORDER BY version DESC`, *typ)
	}
	return r.query(ctx, selectRule+` ORDER BY type, version DESC`)
}

// Publish appends version max+1 for the rule type. The advisory lock
// serializes concurrent publishers of the same type.
func (r *repository) Publish(ctx context.Context, in PublishInput) (pricing.Rule, error) {
	var rule pricing.Rule
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('discount_rules:' || $1))`, string(in.Type)); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM discount_rules WHERE type = $1`, in.Type).Scan(&next); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `INSERT INTO discount_rules (type, quantity_threshold, item_threshold, percentage, active, version, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
			RETURNING id, type, quantity_threshold, item_threshold, percentage, active, version, updated_at`,
			in.Type, in.QuantityThreshold, in.ItemThreshold, in.Percentage, next)
		var err error
		rule, err = scanRule(row)
		return err
	})
	return rule, err
}

func (r *repository) Deactivate(ctx context.Context, id int64) (pricing.Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `UPDATE discount_rules SET active = FALSE, updated_at = NOW() WHERE id = $1
		RETURNING id, type, quantity_threshold, item_threshold, percentage, active, version, updated_at`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Rule{}, fmt.Errorf("%w: discount rule %d", shared.ErrNotFound, id)
	}
	return rule, err
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]pricing.Rule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []pricing.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (pricing.Rule, error) {
	var rule pricing.Rule
	err := row.Scan(&rule.ID, &rule.Type, &rule.QuantityThreshold, &rule.ItemThreshold, &rule.Percentage, &rule.Active, &rule.Version, &rule.UpdatedAt)
	return rule, err
}

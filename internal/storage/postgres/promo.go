package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/acidic-storefront/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses, max_discount
		FROM promo_codes WHERE code = $1 AND active = TRUE`

	incrementPromoUsesSQL = `UPDATE promo_codes SET uses = uses + 1
		WHERE code = $1 AND active = TRUE AND (max_uses = 0 OR uses < max_uses)`

	promoExistsSQL = `SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = $1 AND active = TRUE)`

	upsertPromoSQL = `INSERT INTO promo_codes (code, discount_type, value, min_items, description,
			valid_from, valid_until, max_uses, max_discount, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_items = EXCLUDED.min_items,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			max_discount = EXCLUDED.max_discount,
			active = TRUE`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL. Codes are
// stored normalized.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up an active promo by its code.
// Returns promo.ErrInvalidCode when no matching active promo exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	code = promo.NormalizeCode(code)

	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promo %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidCode
		}
		return nil, errors.Wrapf(err, "find promo %q", code)
	}
	return &rule, nil
}

// IncrementUses atomically consumes one use of code. It returns
// promo.ErrUsageLimitReached when the code has no uses left.
func (r *PromoRepository) IncrementUses(ctx context.Context, code string) error {
	code = promo.NormalizeCode(code)

	tag, err := r.pool.Exec(ctx, incrementPromoUsesSQL, code)
	if err != nil {
		return errors.Wrapf(err, "increment uses of promo %q", code)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, promoExistsSQL, code).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check promo %q", code)
	}
	if !exists {
		return promo.ErrInvalidCode
	}
	return promo.ErrUsageLimitReached
}

// Upsert creates or replaces a rule, keeping its use counter.
func (r *PromoRepository) Upsert(ctx context.Context, rule promo.Rule) error {
	code := promo.NormalizeCode(rule.Code)

	_, err := r.pool.Exec(ctx, upsertPromoSQL,
		code, string(rule.DiscountType), rule.Value, rule.MinItems, rule.Description,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.MaxDiscount,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert promo %q", code)
	}
	return nil
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var (
		rule         promo.Rule
		discountType string
		minItems     int32
		maxUses      int32
		uses         int32
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &minItems, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &maxUses, &uses, &rule.MaxDiscount,
	)
	rule.DiscountType = promo.DiscountType(discountType)
	rule.MinItems = int(minItems)
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}

package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
)

const (
	getLoyaltyProfileSQL = `SELECT user_id, points, total_spent, last_purchase_at
		FROM loyalty_profiles WHERE user_id = $1`

	listRewardTransactionsSQL = `SELECT type, points, order_id, reason, tier_at_time, created_at
		FROM reward_transactions WHERE user_id = $1 ORDER BY seq`

	upsertLoyaltyProfileSQL = `INSERT INTO loyalty_profiles (user_id, points, tier, total_spent, last_purchase_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			points = EXCLUDED.points,
			tier = EXCLUDED.tier,
			total_spent = EXCLUDED.total_spent,
			last_purchase_at = EXCLUDED.last_purchase_at,
			updated_at = now()`

	insertRewardTransactionSQL = `INSERT INTO reward_transactions
			(user_id, seq, type, points, order_id, reason, tier_at_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, seq) DO NOTHING`
)

var _ loyalty.ProfileStore = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.ProfileStore backed by PostgreSQL. The
// transaction log is append-only: Save inserts entries it has not seen and
// never rewrites earlier ones.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// Load returns the profile of userID or loyalty.ErrProfileNotFound.
func (r *LoyaltyRepository) Load(ctx context.Context, userID string) (*loyalty.Profile, error) {
	var (
		p            loyalty.Profile
		lastPurchase *time.Time
	)
	err := r.pool.QueryRow(ctx, getLoyaltyProfileSQL, userID).
		Scan(&p.UserID, &p.Points, &p.TotalSpent, &lastPurchase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrProfileNotFound
		}
		return nil, errors.Wrapf(err, "get loyalty profile %q", userID)
	}
	if lastPurchase != nil {
		p.LastPurchaseAt = *lastPurchase
	}
	p.Tier = loyalty.TierForPoints(p.Points)

	rows, err := r.pool.Query(ctx, listRewardTransactionsSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list reward transactions of %q", userID)
	}
	p.Transactions, err = pgx.CollectRows(rows, scanRewardTransaction)
	if err != nil {
		return nil, errors.Wrapf(err, "scan reward transactions of %q", userID)
	}
	return &p, nil
}

// Save upserts the profile and appends new transactions in one transaction.
func (r *LoyaltyRepository) Save(ctx context.Context, p *loyalty.Profile) error {
	var lastPurchase *time.Time
	if !p.LastPurchaseAt.IsZero() {
		lastPurchase = &p.LastPurchaseAt
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertLoyaltyProfileSQL,
			p.UserID, p.Points, string(loyalty.TierForPoints(p.Points)), p.TotalSpent, lastPurchase,
		); err != nil {
			return errors.Wrap(err, "upsert profile")
		}

		batch := &pgx.Batch{}
		for seq, t := range p.Transactions {
			batch.Queue(insertRewardTransactionSQL,
				p.UserID, seq, string(t.Type), t.Points, t.OrderID, t.Reason, string(t.TierAtTime), t.Timestamp,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err) {
				return loyalty.ErrAlreadyAwarded
			}
			return errors.Wrap(err, "append transactions")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save loyalty profile %q", p.UserID)
	}
	return nil
}

func scanRewardTransaction(row pgx.CollectableRow) (loyalty.Transaction, error) {
	var (
		t          loyalty.Transaction
		typ        string
		tierAtTime string
	)
	err := row.Scan(&typ, &t.Points, &t.OrderID, &t.Reason, &tierAtTime, &t.Timestamp)
	t.Type = loyalty.TransactionType(typ)
	t.TierAtTime = loyalty.Tier(tierAtTime)
	return t, err
}

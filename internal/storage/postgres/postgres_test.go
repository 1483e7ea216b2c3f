//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/domain/user"
)

// --- Helpers ---

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func newTestOrder(id, clientID, userID string, at time.Time) *order.Order {
	return &order.Order{
		ID:       id,
		ClientID: clientID,
		Items: []cart.LineItem{{
			ProductID: "shoe-1",
			Name:      "Runner",
			Variant:   cart.Variant{Color: "black", Size: "42"},
			UnitPrice: decimal.RequireFromString("100.00"),
			Quantity:  3,
			AddedAt:   at,
		}},
		Subtotal:     decimal.RequireFromString("300.00"),
		DeliveryFee:  decimal.RequireFromString("50.00"),
		Tax:          decimal.Zero,
		Discount:     decimal.Zero,
		GrandTotal:   decimal.RequireFromString("350.00"),
		PointsEarned: 35,
		Customer: order.Customer{
			UserID: userID,
			Name:   "Ada Lovelace",
			Email:  "ada@example.com",
			Phone:  "+15550100",
			Address: user.Address{
				FullName: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100",
				Street: "1 Analytical St", City: "London", PostalCode: "12345",
			},
		},
		Status:    order.StatusConfirmed,
		CreatedAt: at,
	}
}

// --- Tests ---

func TestOrderRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newTestOrder("ORD-1", "client-1", "u1", base)
	second := newTestOrder("ORD-2", "client-1", "", base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	t.Run("duplicate id", func(t *testing.T) {
		require.ErrorIs(t, repo.Create(ctx, first), order.ErrAlreadyExists)
	})

	t.Run("get round trip", func(t *testing.T) {
		got, err := repo.Get(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, cart.MarshalDocument(first.Items), cart.MarshalDocument(got.Items))
		assert.True(t, first.GrandTotal.Equal(got.GrandTotal))
		assert.Equal(t, first.Customer.Address, got.Customer.Address)
		assert.Equal(t, int64(35), got.PointsEarned)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		require.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		byClient, err := repo.ListByClient(ctx, "client-1")
		require.NoError(t, err)
		require.Len(t, byClient, 2)
		assert.Equal(t, "ORD-2", byClient[0].ID)

		byUser, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, "ORD-1", byUser[0].ID)

		guests, err := repo.ListByUser(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, guests)
	})

	t.Run("status transitions", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, "ORD-1", order.StatusProcessing))
		require.ErrorIs(t, repo.UpdateStatus(ctx, "ORD-1", order.StatusConfirmed), order.ErrInvalidStatusTransition)
		require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", order.StatusShipped), order.ErrNotFound)
	})
}

func TestLoyaltyRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewLoyaltyRepository(pool)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Load(ctx, "u1")
	require.ErrorIs(t, err, loyalty.ErrProfileNotFound)

	p, _ := loyalty.GrantWelcome(loyalty.NewProfile("u1"), 100, at)
	require.NoError(t, repo.Save(ctx, &p))

	p, award := loyalty.AwardForOrder(p, "ORD-1", decimal.RequireFromString("1000.00"), at.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, &p))
	assert.Equal(t, loyalty.TierSilver, award.NewTier)

	got, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Points)
	assert.Equal(t, loyalty.TierSilver, got.Tier)
	assert.True(t, got.TotalSpent.Equal(decimal.RequireFromString("1000")))
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, loyalty.TransactionWelcome, got.Transactions[0].Type)
	earned, ok := got.EarnedFor("ORD-1")
	require.True(t, ok)
	assert.Equal(t, loyalty.TierBronze, earned.TierAtTime)

	t.Run("saving again appends nothing", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, got))
		again, err := repo.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, again.Transactions, 2)
	})
}

func TestPromoRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPromoRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, promo.Rule{
		Code:         " ten ",
		DiscountType: promo.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		Description:  "10% off",
		MaxUses:      1,
	}))

	rule, err := repo.FindByCode(ctx, "Ten")
	require.NoError(t, err)
	assert.Equal(t, "TEN", rule.Code)
	assert.True(t, rule.Value.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, rule.ValidUntil)

	require.NoError(t, repo.IncrementUses(ctx, "TEN"))
	require.ErrorIs(t, repo.IncrementUses(ctx, "TEN"), promo.ErrUsageLimitReached)
	require.ErrorIs(t, repo.IncrementUses(ctx, "NOPE"), promo.ErrInvalidCode)

	_, err = repo.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, promo.ErrInvalidCode)
}

func TestProductRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, product.Product{
		ID:       "shoe-1",
		Name:     "Runner",
		Price:    decimal.RequireFromString("100.00"),
		Category: "shoes",
		Images:   []string{"runner.png"},
		Variants: product.Variants{Colors: []string{"black"}, Sizes: []string{"41", "42"}},
	}))
	require.NoError(t, repo.Upsert(ctx, product.Product{ID: "cap-1", Name: "Cap", Price: decimal.NewFromInt(20)}))

	got, err := repo.GetByID(ctx, "shoe-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"41", "42"}, got.Variants.Sizes)
	require.NoError(t, got.CheckVariant("black", "42"))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cap-1", all[0].ID)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/user"
	"github.com/xenking/acidic-storefront/internal/messaging"
)

// --- Mock implementations ---

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, []byte) error {
	return errors.New("broker down")
}

type failingRepo struct {
	*Memory
	err error
}

func (f *failingRepo) Create(context.Context, *Order) error {
	return f.err
}

// --- Helpers ---

var testNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func newDraft(id string) Draft {
	items := []cart.LineItem{{
		ProductID: "p1",
		Name:      "Tee",
		Variant:   cart.Variant{Color: "black", Size: "M"},
		UnitPrice: decimal.NewFromInt(200),
		Quantity:  1,
		AddedAt:   testNow,
	}}
	totals := cart.ComputeTotals(items, cart.DefaultPricing())
	return Draft{
		ID:           id,
		ClientID:     "c1",
		Items:        items,
		Totals:       totals,
		Discount:     decimal.Zero,
		GrandTotal:   totals.GrandTotal,
		PointsEarned: 35,
		Customer: Customer{
			UserID:  "u1",
			Name:    "Asha",
			Email:   "asha@example.com",
			Address: user.Address{FullName: "Asha", City: "Karachi", PostalCode: "75500"},
		},
	}
}

// --- Tests ---

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	pub := &messaging.Memory{}
	r := NewRecorder(repo, WithPublisher(pub, ""), WithClock(func() time.Time { return testNow }))

	d := newDraft("o1")
	o, err := r.Record(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, testNow, o.CreatedAt)
	assert.True(t, decimal.NewFromInt(350).Equal(o.GrandTotal))
	assert.Equal(t, int64(35), o.PointsEarned)

	d.Items[0].Quantity = 9
	stored, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[0].Quantity, "items are copied")

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicOrderPlaced, msgs[0].Topic)
	assert.Equal(t, "o1", msgs[0].Key)

	ev, err := DecodeEvent(msgs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "o1", ev.ID)
	assert.Equal(t, "Karachi", ev.Customer.Address.City)
	assert.True(t, decimal.NewFromInt(350).Equal(ev.GrandTotal))
}

func TestRecorder_RecordTwice(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	pub := &messaging.Memory{}
	r := NewRecorder(repo, WithPublisher(pub, "orders"))

	first, err := r.Record(ctx, newDraft("o1"))
	require.NoError(t, err)
	second, err := r.Record(ctx, newDraft("o1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	all, err := repo.ListByClient(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, pub.Messages(), 1)
	assert.Equal(t, "orders", pub.Messages()[0].Topic)
}

func TestRecorder_Validation(t *testing.T) {
	r := NewRecorder(NewMemory())

	_, err := r.Record(context.Background(), Draft{})
	require.Error(t, err)

	d := newDraft("o1")
	d.Items = nil
	_, err = r.Record(context.Background(), d)
	require.Error(t, err)
}

func TestRecorder_PublishFailureIsNotFatal(t *testing.T) {
	r := NewRecorder(NewMemory(), WithPublisher(failingPublisher{}, ""))
	_, err := r.Record(context.Background(), newDraft("o1"))
	require.NoError(t, err)
}

func TestRecorder_CreateError(t *testing.T) {
	r := NewRecorder(&failingRepo{Memory: NewMemory(), err: errors.New("db down")})
	_, err := r.Record(context.Background(), newDraft("o1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestMemory_ListAndStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	r := NewRecorder(repo)

	_, err := r.Record(ctx, newDraft("o1"))
	require.NoError(t, err)
	guest := newDraft("o2")
	guest.Customer.UserID = ""
	_, err = r.Record(ctx, guest)
	require.NoError(t, err)

	byClient, err := repo.ListByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, byClient, 2)
	assert.Equal(t, "o2", byClient[0].ID, "newest first")

	byUser, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	require.NoError(t, repo.UpdateStatus(ctx, "o1", StatusProcessing))
	require.ErrorIs(t, repo.UpdateStatus(ctx, "o1", StatusDelivered), ErrInvalidStatusTransition)
	require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", StatusShipped), ErrNotFound)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusConfirmed, StatusProcessing))
	assert.True(t, CanTransition(StatusProcessing, StatusCancelled))
	assert.True(t, CanTransition(StatusShipped, StatusDelivered))
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, CanTransition(StatusShipped, StatusCancelled))
}

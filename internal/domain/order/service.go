package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/messaging"
)

// TopicOrderPlaced receives an event for every recorded order.
const TopicOrderPlaced = "storefront.orders.placed"

// NewID returns a fresh order ID.
func NewID() string {
	return uuid.NewString()
}

// Draft is everything the Recorder needs to build an Order. ID is chosen by
// the caller so that a retried recording is recognized.
type Draft struct {
	ID           string
	ClientID     string
	Items        []cart.LineItem
	Totals       cart.Totals
	Discount     decimal.Decimal
	PromoCode    string
	GrandTotal   decimal.Decimal
	PointsEarned int64
	Customer     Customer
}

// Recorder appends completed orders to the history and announces them.
type Recorder struct {
	orders    Repository
	publisher messaging.Publisher
	topic     string
	now       func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithPublisher announces recorded orders through p.
func WithPublisher(p messaging.Publisher, topic string) RecorderOption {
	return func(r *Recorder) {
		r.publisher = p
		if topic != "" {
			r.topic = topic
		}
	}
}

// WithClock overrides the clock stamping orders.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder returns a Recorder writing to orders.
func NewRecorder(orders Repository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		orders:    orders,
		publisher: messaging.Nop{},
		topic:     TopicOrderPlaced,
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record builds the Order of d and stores it. Recording the same draft ID
// twice returns the stored order. Publishing failures are logged and do not
// fail the recording.
func (r *Recorder) Record(ctx context.Context, d Draft) (*Order, error) {
	if d.ID == "" {
		return nil, errors.New("order id required")
	}
	if len(d.Items) == 0 {
		return nil, errors.New("order has no items")
	}

	o := &Order{
		ID:           d.ID,
		ClientID:     d.ClientID,
		Items:        cart.CloneItems(d.Items),
		Subtotal:     d.Totals.Subtotal,
		DeliveryFee:  d.Totals.DeliveryFee,
		Tax:          d.Totals.Tax,
		Discount:     d.Discount,
		GrandTotal:   d.GrandTotal,
		PromoCode:    d.PromoCode,
		PointsEarned: d.PointsEarned,
		Customer:     d.Customer,
		Status:       StatusConfirmed,
		CreatedAt:    r.now().UTC(),
	}

	lg := zctx.From(ctx)
	if err := r.orders.Create(ctx, o); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, errors.Wrap(err, "create order")
		}
		existing, err := r.orders.Get(ctx, d.ID)
		if err != nil {
			return nil, errors.Wrap(err, "get order")
		}
		lg.Debug("Order already recorded", zap.String("order_id", d.ID))
		return existing, nil
	}

	lg.Info("Order recorded",
		zap.String("order_id", o.ID),
		zap.String("grand_total", o.GrandTotal.StringFixed(2)),
		zap.Bool("guest", o.Customer.Guest()),
	)

	if err := r.publisher.Publish(ctx, r.topic, o.ID, EncodeEvent(o)); err != nil {
		lg.Warn("Publish order event", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

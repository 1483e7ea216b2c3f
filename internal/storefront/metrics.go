package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics are the storefront business counters.
type Metrics struct {
	ordersCompleted metric.Int64Counter
	pointsAwarded   metric.Int64Counter
	payments        metric.Int64Counter
}

// NewMetrics registers the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.ordersCompleted, err = meter.Int64Counter("storefront.orders.completed",
		metric.WithDescription("Orders confirmed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if m.pointsAwarded, err = meter.Int64Counter("storefront.loyalty.points_awarded",
		metric.WithDescription("Loyalty points credited for orders"),
	); err != nil {
		return nil, errors.Wrap(err, "points counter")
	}
	if m.payments, err = meter.Int64Counter("storefront.payments",
		metric.WithDescription("Payment submissions by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "payments counter")
	}
	return &m, nil
}

func nopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

func (m *Metrics) payment(ctx context.Context, outcome string) {
	m.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) order(ctx context.Context, guest bool, points int64) {
	m.ordersCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("guest", guest)))
	if points > 0 {
		m.pointsAwarded.Add(ctx, points)
	}
}

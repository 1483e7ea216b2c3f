// Package order records completed checkouts.
package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/user"
)

var (
	// ErrNotFound is returned for unknown order IDs.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyExists is returned by Repository.Create for a duplicate ID.
	ErrAlreadyExists = errors.New("order already exists")
	// ErrInvalidStatusTransition is returned by UpdateStatus.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses. Orders are created Confirmed; the rest are set by the
// backend.
const (
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Customer is who placed the order. Guest orders have no UserID.
type Customer struct {
	UserID  string
	Name    string
	Email   string
	Phone   string
	Address user.Address
}

// Guest reports whether the order was placed without signing in.
func (c Customer) Guest() bool {
	return c.UserID == ""
}

// Order is an immutable snapshot of a completed checkout.
type Order struct {
	ID           string
	ClientID     string
	Items        []cart.LineItem
	Subtotal     decimal.Decimal
	DeliveryFee  decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	GrandTotal   decimal.Decimal
	PromoCode    string
	PointsEarned int64
	Customer     Customer
	Status       Status
	CreatedAt    time.Time
}

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByClient(ctx context.Context, clientID string) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

var _ Repository = (*Memory)(nil)

// Memory is an in-process order history.
type Memory struct {
	mu     sync.RWMutex
	orders []Order
}

// NewMemory returns an empty history.
func NewMemory() *Memory {
	return &Memory{}
}

// Create implements Repository.
func (m *Memory) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.orders {
		if existing.ID == o.ID {
			return ErrAlreadyExists
		}
	}
	c := *o
	c.Items = cart.CloneItems(o.Items)
	m.orders = append(m.orders, c)
	return nil
}

// Get implements Repository.
func (m *Memory) Get(_ context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders {
		if o.ID == id {
			o.Items = cart.CloneItems(o.Items)
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

// ListByClient implements Repository. Newest first.
func (m *Memory) ListByClient(_ context.Context, clientID string) ([]Order, error) {
	return m.filter(func(o Order) bool { return o.ClientID == clientID }), nil
}

// ListByUser implements Repository. Newest first.
func (m *Memory) ListByUser(_ context.Context, userID string) ([]Order, error) {
	return m.filter(func(o Order) bool { return o.Customer.UserID == userID }), nil
}

func (m *Memory) filter(keep func(Order) bool) []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if o := m.orders[i]; keep(o) {
			o.Items = cart.CloneItems(o.Items)
			out = append(out, o)
		}
	}
	return out
}

// UpdateStatus implements Repository.
func (m *Memory) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.orders {
		if m.orders[i].ID != id {
			continue
		}
		if !CanTransition(m.orders[i].Status, status) {
			return errors.Wrapf(ErrInvalidStatusTransition, "%s to %s", m.orders[i].Status, status)
		}
		m.orders[i].Status = status
		return nil
	}
	return ErrNotFound
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/order"
)

const (
	orderColumns = `id, client_id, user_id, items, subtotal, delivery_fee, tax, discount,
		grand_total, promo_code, points_earned, customer_name, customer_email, customer_phone,
		address, status, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByClientSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE client_id = $1 ORDER BY created_at DESC, id`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND user_id <> '' ORDER BY created_at DESC, id`

	lockOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are kept as JSONB documents in the cart's
// wire format.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A second order with the same ID fails with
// order.ErrAlreadyExists.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	var items, address jx.Encoder
	cart.EncodeItems(&items, o.Items)
	o.Customer.Address.Encode(&address)

	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.ClientID, o.Customer.UserID, items.Bytes(),
		o.Subtotal, o.DeliveryFee, o.Tax, o.Discount, o.GrandTotal,
		o.PromoCode, o.PointsEarned,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, address.Bytes(),
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrAlreadyExists
		}
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns the order with id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// ListByClient returns the orders placed from a client, newest first.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByClientSQL, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by client")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByUser returns the orders of a signed-in user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by user")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus moves an order along its lifecycle.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrapf(err, "lock order %q", id)
		}

		from := order.Status(current)
		if !order.CanTransition(from, status) {
			return errors.Wrapf(order.ErrInvalidStatusTransition, "%s to %s", from, status)
		}

		if _, err := tx.Exec(ctx, updateOrderStatusSQL, id, string(status)); err != nil {
			return errors.Wrapf(err, "update status of order %q", id)
		}
		return nil
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		items   []byte
		address []byte
		status  string
	)
	if err := row.Scan(
		&o.ID, &o.ClientID, &o.Customer.UserID, &items,
		&o.Subtotal, &o.DeliveryFee, &o.Tax, &o.Discount, &o.GrandTotal,
		&o.PromoCode, &o.PointsEarned,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &address,
		&status, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	decoded, err := cart.DecodeItems(jx.DecodeBytes(items))
	if err != nil {
		return o, errors.Wrapf(err, "decode items of order %q", o.ID)
	}
	o.Items = decoded

	if err := o.Customer.Address.Decode(jx.DecodeBytes(address)); err != nil {
		return o, errors.Wrapf(err, "decode address of order %q", o.ID)
	}
	return o, nil
}

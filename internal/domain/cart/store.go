package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/domain/product"
)

// Store is the single owner of one client's cart. Every mutation reloads the
// persisted items, applies the change to a copy and saves it; the in-memory
// view is swapped only after the save succeeded, so a failed operation leaves
// both the storage and the view unchanged.
type Store struct {
	mu      sync.Mutex
	storage Storage
	pricing Pricing
	now     func() time.Time
	items   []LineItem
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp new lines.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open restores the cart from storage. Storages implementing Migrator are
// migrated first.
func Open(ctx context.Context, storage Storage, pricing Pricing, opts ...Option) (*Store, error) {
	s := &Store{
		storage: storage,
		pricing: pricing,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if m, ok := storage.(Migrator); ok {
		migrated, err := m.Migrate(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "migrate")
		}
		if migrated {
			zctx.From(ctx).Info("Migrated legacy cart")
		}
	}

	items, err := storage.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	s.items = items
	return s, nil
}

// Items returns a copy of the line items in display order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneItems(s.items)
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Totals derives totals from the current lines.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.items, s.pricing)
}

// Pricing returns the order-level charges of this cart.
func (s *Store) Pricing() Pricing {
	return s.pricing
}

// mutate runs fn over a fresh copy of the persisted items and commits the
// result.
func (s *Store) mutate(ctx context.Context, fn func(items []LineItem) ([]LineItem, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.storage.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load")
	}
	next, err := fn(CloneItems(current))
	if err != nil {
		return err
	}
	if len(next) == 0 {
		next = nil
	}
	if err := s.storage.Save(ctx, next); err != nil {
		return errors.Wrap(err, "save")
	}
	s.items = next
	return nil
}

// AddItem adds qty units of p in variant v. An existing line with the same
// product and variant is incremented instead of appending a new one.
func (s *Store) AddItem(ctx context.Context, p product.Product, v Variant, qty int) error {
	return s.add(ctx, p, v, qty, false, decimal.Zero)
}

// AddCustomizedItem adds a line whose unit price carries fee on top of the
// product price.
func (s *Store) AddCustomizedItem(ctx context.Context, p product.Product, v Variant, qty int, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return errors.New("customization fee must not be negative")
	}
	return s.add(ctx, p, v, qty, true, fee)
}

func (s *Store) add(ctx context.Context, p product.Product, v Variant, qty int, customized bool, fee decimal.Decimal) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := p.CheckVariant(v.Color, v.Size); err != nil {
		return err
	}

	err := s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		for i := range items {
			if !items[i].sameLine(p.ID, v) {
				continue
			}
			want := items[i].Quantity + qty
			if want > money.MaxQuantity {
				return nil, &QuantityLimitError{ProductID: p.ID, Requested: want, Limit: money.MaxQuantity}
			}
			items[i].Quantity = want
			if customized {
				items[i].Customized = true
				items[i].CustomizationFee = fee
			}
			return items, nil
		}
		if qty > money.MaxQuantity {
			return nil, &QuantityLimitError{ProductID: p.ID, Requested: qty, Limit: money.MaxQuantity}
		}
		return append(items, LineItem{
			ProductID:        p.ID,
			Name:             p.Name,
			Image:            p.Thumbnail(),
			Variant:          v,
			UnitPrice:        p.Price,
			Quantity:         qty,
			Customized:       customized,
			CustomizationFee: fee,
			AddedAt:          s.now().UTC(),
		}), nil
	})
	if err != nil {
		return err
	}

	zctx.From(ctx).Debug("Cart item added",
		zap.String("product_id", p.ID),
		zap.String("color", v.Color),
		zap.String("size", v.Size),
		zap.Int("quantity", qty),
	)
	return nil
}

// RemoveItem deletes the line at index.
func (s *Store) RemoveItem(ctx context.Context, index int) error {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if index < 0 || index >= len(items) {
			return nil, &IndexOutOfRangeError{Index: index, Len: len(items)}
		}
		return append(items[:index], items[index+1:]...), nil
	})
}

// SetQuantity replaces the quantity of the line at index. A non-positive qty
// removes the line.
func (s *Store) SetQuantity(ctx context.Context, index, qty int) error {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if index < 0 || index >= len(items) {
			return nil, &IndexOutOfRangeError{Index: index, Len: len(items)}
		}
		if qty <= 0 {
			return append(items[:index], items[index+1:]...), nil
		}
		if qty > money.MaxQuantity {
			return nil, &QuantityLimitError{ProductID: items[index].ProductID, Requested: qty, Limit: money.MaxQuantity}
		}
		items[index].Quantity = qty
		return items, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Save(ctx, nil); err != nil {
		return errors.Wrap(err, "save")
	}
	s.items = nil
	return nil
}

// Reload replaces the in-memory view with the persisted items, picking up
// writes made through another Store over the same storage.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.storage.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load")
	}
	s.items = items
	return nil
}

// Refresh updates line names, prices and images from catalog. Lines whose
// product cannot be fetched keep their snapshot values. Reports the number of
// lines that changed.
func (s *Store) Refresh(ctx context.Context, catalog product.Catalog) (int, error) {
	lg := zctx.From(ctx)
	var changed int
	err := s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		changed = 0
		for i := range items {
			p, err := catalog.GetByID(ctx, items[i].ProductID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				lg.Debug("Keeping cart snapshot",
					zap.String("product_id", items[i].ProductID),
					zap.Error(err),
				)
				continue
			}
			if refreshLine(&items[i], p) {
				changed++
			}
		}
		return items, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func refreshLine(l *LineItem, p *product.Product) bool {
	next := *l
	if p.Name != "" {
		next.Name = p.Name
	}
	if p.Price.IsPositive() {
		next.UnitPrice = p.Price
	}
	if img := p.Thumbnail(); img != "" {
		next.Image = img
	}
	if next.Name == l.Name && next.UnitPrice.Equal(l.UnitPrice) && next.Image == l.Image {
		return false
	}
	*l = next
	return true
}

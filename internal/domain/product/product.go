package product

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrUnknownVariant is returned when a color or size is not offered for a product.
var ErrUnknownVariant = errors.New("variant not offered")

// Product is the catalog view the storefront consumes. The catalog service
// owns it; the cart keeps a snapshot of the fields it needs.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Images   []string
	Variants Variants
}

// Variants lists the colors and sizes a product is sold in. An empty list
// means the dimension is not applicable and any value (including "") is accepted.
type Variants struct {
	Colors []string
	Sizes  []string
}

// Thumbnail returns the first image, or "" when the product has none.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CheckVariant returns ErrUnknownVariant when color or size is not offered.
func (p Product) CheckVariant(color, size string) error {
	if len(p.Variants.Colors) > 0 && !slices.Contains(p.Variants.Colors, color) {
		return errors.Wrapf(ErrUnknownVariant, "color %q", color)
	}
	if len(p.Variants.Sizes) > 0 && !slices.Contains(p.Variants.Sizes, size) {
		return errors.Wrapf(ErrUnknownVariant, "size %q", size)
	}
	return nil
}

// Catalog is the read boundary of the catalog service.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

// Repository defines read and write operations for the product catalog.
type Repository interface {
	Catalog
	List(ctx context.Context) ([]Product, error)
	Upsert(ctx context.Context, p Product) error
}

var _ Repository = (*Memory)(nil)

// Memory is an in-process catalog used for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Product
}

// NewMemory returns a Memory catalog holding products.
func NewMemory(products ...Product) *Memory {
	m := &Memory{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		m.put(p)
	}
	return m
}

func (m *Memory) put(p Product) {
	if _, ok := m.byID[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.byID[p.ID] = p
}

// GetByID returns the product with id or ErrNotFound.
func (m *Memory) GetByID(_ context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// List returns products in insertion order.
func (m *Memory) List(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

// Upsert inserts or replaces p.
func (m *Memory) Upsert(_ context.Context, p Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(p)
	return nil
}

package storefront

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/xenking/acidic-storefront/internal/domain/product"
)

var _ product.Catalog = (*sharedCatalog)(nil)

// sharedCatalog collapses concurrent lookups of the same product into one
// call to the backing catalog.
type sharedCatalog struct {
	next  product.Catalog
	group singleflight.Group
}

func (c *sharedCatalog) GetByID(ctx context.Context, id string) (*product.Product, error) {
	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*product.Product)
	return &p, nil
}

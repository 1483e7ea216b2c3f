// Package mongo serves the product catalog from a MongoDB collection.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/acidic-storefront/internal/domain/product"
)

// CollectionProducts holds catalog documents keyed by product id.
const CollectionProducts = "products"

// Connect opens a client to uri, verifies it with a ping and returns the
// named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongodb")
	}

	return client.Database(database), nil
}

type productDocument struct {
	ID        string               `bson:"_id"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Category  string               `bson:"category"`
	Images    []string             `bson:"images"`
	Colors    []string             `bson:"colors,omitempty"`
	Sizes     []string             `bson:"sizes,omitempty"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func toDocument(p product.Product, at time.Time) (productDocument, error) {
	price, err := primitive.ParseDecimal128(p.Price.StringFixed(2))
	if err != nil {
		return productDocument{}, errors.Wrapf(err, "price of %q", p.ID)
	}
	return productDocument{
		ID:        p.ID,
		Name:      p.Name,
		Price:     price,
		Category:  p.Category,
		Images:    p.Images,
		Colors:    p.Variants.Colors,
		Sizes:     p.Variants.Sizes,
		UpdatedAt: at,
	}, nil
}

func (d productDocument) product() (product.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "price of %q", d.ID)
	}
	return product.Product{
		ID:       d.ID,
		Name:     d.Name,
		Price:    price,
		Category: d.Category,
		Images:   d.Images,
		Variants: product.Variants{Colors: d.Colors, Sizes: d.Sizes},
	}, nil
}

var _ product.Repository = (*Catalog)(nil)

// Catalog implements product.Repository over a MongoDB collection.
type Catalog struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewCatalog returns a Catalog over the products collection of db.
func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{
		collection: db.Collection(CollectionProducts),
		now:        time.Now,
	}
}

// CreateIndexes creates the secondary indexes used by listing.
func (c *Catalog) CreateIndexes(ctx context.Context) error {
	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "create category index")
	}
	return nil
}

// GetByID returns the product with id or product.ErrNotFound.
func (c *Catalog) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDocument
	if err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := doc.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every product ordered by id.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	cur, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	out := make([]product.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Upsert inserts or replaces p.
func (c *Catalog) Upsert(ctx context.Context, p product.Product) error {
	doc, err := toDocument(p, c.now())
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := c.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

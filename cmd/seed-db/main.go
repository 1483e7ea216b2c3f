package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/db"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/storage/mongo"
	"github.com/xenking/acidic-storefront/internal/storage/postgres"
)

// defaultPromos are the codes every environment starts with.
var defaultPromos = []promo.Rule{
	{
		Code:         "WELCOME10",
		DiscountType: promo.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		Description:  "Welcome: 10% off your order",
	},
	{
		Code:         "ACID500",
		DiscountType: promo.DiscountFixed,
		Value:        decimal.NewFromInt(500),
		MinItems:     2,
		Description:  "Rs. 500 off two or more items",
	},
	{
		Code:         "FREESTICKER",
		DiscountType: promo.DiscountFreeLowest,
		Value:        decimal.Zero,
		MinItems:     3,
		Description:  "Cheapest item free on three or more items",
	},
}

type options struct {
	databaseURL   string
	mongoURI      string
	mongoDatabase string
	productsFile  string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB URI; when set, products go to MongoDB (or ACIDIC_MONGO_URI env)")
	flag.StringVar(&opts.mongoDatabase, "mongo-database", "storefront", "MongoDB database name")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to products JSON file (default: embedded catalog)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.mongoURI == "" {
		opts.mongoURI = os.Getenv("ACIDIC_MONGO_URI")
	}
	if opts.databaseURL == "" && opts.mongoURI == "" {
		slog.Error("nothing to seed: set --database-url, --mongo-uri, DATABASE_URL or ACIDIC_MONGO_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	products, err := readProducts(opts.productsFile)
	if err != nil {
		return err
	}

	var catalog product.Repository
	if opts.mongoURI != "" {
		slog.Info("connecting to mongodb", slog.String("database", opts.mongoDatabase))

		mdb, err := mongo.Connect(ctx, opts.mongoURI, opts.mongoDatabase)
		if err != nil {
			return errors.Wrap(err, "connect to mongodb")
		}
		defer func() { _ = mdb.Client().Disconnect(context.Background()) }()

		c := mongo.NewCatalog(mdb)
		if err := c.CreateIndexes(ctx); err != nil {
			return errors.Wrap(err, "create catalog indexes")
		}
		catalog = c
	}

	if opts.databaseURL != "" {
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		slog.Info("running migrations")

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		if catalog == nil {
			catalog = postgres.NewProductRepository(pool)
		}
		if err := seedPromos(ctx, postgres.NewPromoRepository(pool)); err != nil {
			return errors.Wrap(err, "seed promos")
		}
	}

	if err := seedProducts(ctx, catalog, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	return nil
}

func readProducts(path string) ([]product.Product, error) {
	data := db.SeedProducts
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}
	products, err := product.DecodeCatalog(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	return products, nil
}

func seedProducts(ctx context.Context, catalog product.Repository, products []product.Product) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := catalog.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type promoWriter interface {
	Upsert(ctx context.Context, rule promo.Rule) error
}

func seedPromos(ctx context.Context, repo promoWriter) error {
	slog.Info("seeding default promo codes")

	for _, r := range defaultPromos {
		if err := repo.Upsert(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert promo %s", r.Code)
		}

		slog.Info("upserted promo", slog.String("code", r.Code), slog.String("description", r.Description))
	}

	return nil
}

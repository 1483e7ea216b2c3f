package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/acidic-storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		cfg         scanConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzipped promo code dumps")
	flag.StringVar(&pattern, "pattern", "promos*.gz", "glob of dump files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&cfg.capacity, "bloom-capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&cfg.fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&cfg.minFiles, "min-files", 2, "a code is valid when it appears in at least this many files")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, cfg); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, cfg scanConfig) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "list dump files")
	}
	sort.Strings(files)
	if len(files) < cfg.minFiles {
		return errors.Errorf("found %d dump files in %s, need at least %d", len(files), dataDir, cfg.minFiles)
	}

	validCodes, err := scanDumps(ctx, files, cfg)
	if err != nil {
		return err
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writePromos(ctx, postgres.NewPromoRepository(pool), validCodes); err != nil {
		return errors.Wrap(err, "write promos to database")
	}

	return nil
}

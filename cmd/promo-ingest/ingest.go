package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/acidic-storefront/internal/domain/promo"
)

const (
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
	maxFiles      = 64
)

type scanConfig struct {
	capacity uint
	fpr      float64
	minFiles int
}

// codeRules maps well-known codes to their rule. Other valid codes get
// defaultRule.
var codeRules = map[string]promo.Rule{
	"BIRTHDAY": {DiscountType: promo.DiscountFreeLowest, Description: "Birthday: free lowest item"},
	"BUYGETON": {DiscountType: promo.DiscountFreeLowest, MinItems: 2, Description: "Lowest item free (buy 2+)"},
	"FIFTYOFF": {DiscountType: promo.DiscountPercentage, Value: decimal.NewFromInt(50), Description: "50% off entire order"},
	"ACIDDROP": {DiscountType: promo.DiscountPercentage, Value: decimal.NewFromInt(25), Description: "Drop day: 25% off"},
	"OVER9000": {DiscountType: promo.DiscountFixed, Value: decimal.NewFromInt(900), Description: "Rs. 900 off your order"},
	"HAPPYHRS": {DiscountType: promo.DiscountPercentage, Value: decimal.NewFromInt(18), Description: "Happy Hours: 18% off"},
}

var defaultRule = promo.Rule{
	DiscountType: promo.DiscountPercentage,
	Value:        decimal.NewFromInt(10),
	Description:  "Valid promo code: 10% off",
}

// ruleFor returns the rule to store for code.
func ruleFor(code string) promo.Rule {
	rule, ok := codeRules[code]
	if !ok {
		rule = defaultRule
	}
	rule.Code = code
	return rule
}

func validLength(code string) bool {
	return len(code) >= minCodeLen && len(code) <= maxCodeLen
}

// scanDumps returns the sorted codes that appear in at least cfg.minFiles
// of files. Pass 1 builds one bloom filter per file; pass 2 re-streams each
// file and keeps codes some other filter has seen.
func scanDumps(ctx context.Context, files []string, cfg scanConfig) ([]string, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("too many dump files: %d > %d", len(files), maxFiles)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")

	codes, err := findValidCodes(ctx, files, filters, cfg.minFiles)
	if err != nil {
		return nil, errors.Wrap(err, "find valid codes")
	}
	return codes, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, cfg scanConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.capacity, cfg.fpr)
			var count uint64

			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes marks, per file, the codes that another file's filter
// reports, then merges the per-file bitmasks. Bloom false positives are
// removed by requiring minFiles exact sightings across files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, minFiles int) ([]string, error) {
	results := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint64)
			fileBit := uint64(1) << uint(i)

			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", path)
			}

			slog.Info("pass 2 complete", slog.String("file", path), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= minFiles {
			valid = append(valid, code)
		}
	}
	sort.Strings(valid)
	return valid, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line,
// normalized the way promo codes are looked up.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(promo.NormalizeCode(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

type promoWriter interface {
	Upsert(ctx context.Context, rule promo.Rule) error
}

// writePromos upserts a rule for every valid code.
func writePromos(ctx context.Context, repo promoWriter, codes []string) error {
	slog.Info("writing promos to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		if err := repo.Upsert(ctx, ruleFor(code)); err != nil {
			return errors.Wrapf(err, "upsert promo %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}

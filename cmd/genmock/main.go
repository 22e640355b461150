// Command genmock writes a deterministic synthetic raw_transactions table for
// local runs and demos. The rows carry the defects the cleaner is built to
// remove: exact duplicates, missing invoice numbers, quantity and price
// outliers, padded text and inconsistent country casing.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -driver sqlite \
//	  -dsn data/mock/source.db \
//	  -rows 1000 -seed 42
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/observability"
	"github.com/couchcryptid/commerce-quality-etl/internal/schema"
)

var baseDate = time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

var (
	countries = []string{"United Kingdom", "france", "GERMANY", "Netherlands", " Spain "}
	products  = []struct {
		code, description string
		price             float64
	}{
		{"85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 2.55},
		{"71053", "WHITE METAL LANTERN", 3.39},
		{"84406B", "CREAM CUPID HEARTS COAT HANGER", 2.75},
		{"22752", "SET 7 BABUSHKA NESTING BOXES", 7.65},
		{"21730", "GLASS STAR FROSTED T-LIGHT HOLDER", 4.25},
		{"22633", "HAND WARMER UNION JACK", 1.85},
	}
)

// Defect rates, per generated row.
const (
	duplicateRate = 0.02
	missingRate   = 0.08
	outlierRate   = 0.01
	badDateRate   = 0.01
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	driver := flag.String("driver", sqlstore.DriverSQLite, "database driver")
	dsn := flag.String("dsn", "data/mock/source.db", "data source name")
	table := flag.String("table", "raw_transactions", "table to replace")
	rows := flag.Int("rows", 1000, "rows to generate before duplicates are added")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *rows <= 0 {
		return errors.New("-rows must be positive")
	}

	ctx := context.Background()
	logger := observability.NewLogger("info", "text")

	store, err := sqlstore.Open(ctx, sqlstore.Options{Driver: *driver, DSN: *dsn, Name: "mock source"}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ds := generate(*rows, *seed)
	res, err := store.Load(ctx, ds, *table, domain.ModeReplace)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d rows to %s (%d duplicates)\n", res.RowsLoaded, res.Table, ds.DuplicateCount())
	return nil
}

// generate returns n source rows plus injected duplicates. The same n and seed
// always produce the same dataset.
func generate(n int, seed uint64) domain.Dataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	records := make([]map[string]any, 0, n+n/20)
	for i := range n {
		p := products[rng.IntN(len(products))]
		qty := float64(1 + rng.IntN(24))
		price := p.price

		rec := map[string]any{
			"InvoiceNo":   strconv.Itoa(536365 + i),
			"InvoiceDate": baseDate.Add(time.Duration(i) * 17 * time.Minute).Format("2006-01-02 15:04:05"),
			"CustomerID":  strconv.Itoa(12000 + rng.IntN(500)),
			"StockCode":   p.code,
			"Description": p.description,
			"Quantity":    qty,
			"UnitPrice":   price,
			"Country":     countries[rng.IntN(len(countries))],
		}

		if rng.Float64() < missingRate {
			rec["InvoiceNo"] = nil
		}
		if rng.Float64() < outlierRate {
			rec["Quantity"] = qty * 1000
		}
		if rng.Float64() < outlierRate {
			rec["UnitPrice"] = price * 500
		}
		if rng.Float64() < badDateRate {
			rec["InvoiceDate"] = "not a date"
		}
		if rng.IntN(10) == 0 {
			rec["Description"] = "  " + p.description + " "
		}

		records = append(records, rec)
		if rng.Float64() < duplicateRate {
			records = append(records, rec)
		}
	}
	return domain.FromRecords(schema.EcommerceSourceColumns, records)
}

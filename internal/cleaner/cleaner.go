// Package cleaner removes duplicate, incomplete and outlying rows from a
// dataset and normalizes its text and numeric columns.
//
// Cleaning is a fixed sequence of named stages, each applied to the output of
// the previous one:
//
//	deduplicate          drop exact duplicates of an earlier row
//	drop_critical_nulls  drop rows with nulls in critical columns above 5% nulls
//	coerce_numeric       turn text columns that fully parse as numbers into numbers
//	filter_outliers      drop rows outside the 1.5×IQR whiskers, column by column
//	standardize_text     trim text; lowercase country and email columns
//
// The order is part of the contract: deduplicating before counting nulls, and
// coercing before computing quartiles, decides which rows survive.
package cleaner

import (
	"io"
	"log/slog"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Stage names, in execution order.
const (
	StageDeduplicate     = "deduplicate"
	StageCriticalNulls   = "drop_critical_nulls"
	StageCoerceNumeric   = "coerce_numeric"
	StageFilterOutliers  = "filter_outliers"
	StageStandardizeText = "standardize_text"
)

// CriticalNullPercent is the null percentage above which a critical column's
// null rows are dropped.
const CriticalNullPercent = 5.0

// Config names the columns the null and outlier stages act on. Columns absent
// from the dataset are ignored.
type Config struct {
	CriticalColumns []string
	OutlierColumns  []string
}

// DefaultConfig is the configuration used for raw e-commerce transactions.
func DefaultConfig() Config {
	return Config{
		CriticalColumns: []string{"InvoiceNo", "StockCode"},
		OutlierColumns:  []string{"Quantity", "UnitPrice"},
	}
}

type stage struct {
	name  string
	apply func(c *Cleaner, ds domain.Dataset, cfg Config) (domain.Dataset, []string)
}

var stages = []stage{
	{StageDeduplicate, (*Cleaner).deduplicate},
	{StageCriticalNulls, (*Cleaner).dropCriticalNulls},
	{StageCoerceNumeric, (*Cleaner).coerceNumeric},
	{StageFilterOutliers, (*Cleaner).filterOutliers},
	{StageStandardizeText, (*Cleaner).standardizeText},
}

// Stages returns the stage names in the order Clean applies them.
func Stages() []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// Cleaner applies the cleaning stages. It holds no per-call state and may be
// shared between goroutines.
type Cleaner struct {
	logger *slog.Logger
}

// New creates a Cleaner that logs stage results to logger. A nil logger discards.
func New(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cleaner{logger: logger}
}

// Clean runs every stage over ds and returns the cleaned dataset together with
// the statistics for this call. ds itself is not modified.
func (c *Cleaner) Clean(ds domain.Dataset, cfg Config) (domain.Dataset, Stats) {
	c.logger.Info("cleaning started", "rows", ds.Len(), "columns", ds.Width())

	stats := Stats{InputRows: ds.Len(), Stages: make([]StageStats, 0, len(stages))}
	cur := ds
	for _, s := range stages {
		in := cur.Len()
		var cols []string
		cur, cols = s.apply(c, cur, cfg)
		stats.Stages = append(stats.Stages, StageStats{
			Name:    s.name,
			RowsIn:  in,
			RowsOut: cur.Len(),
			Columns: cols,
		})
		if s.name == StageDeduplicate {
			stats.DuplicatesRemoved = in - cur.Len()
		}
	}
	stats.finish(cur.Len())

	c.logger.Info("cleaning complete",
		"rows", cur.Len(),
		"rows_removed", stats.RowsRemoved,
		"removal_pct", stats.RemovalPercentage,
	)
	return cur, stats
}

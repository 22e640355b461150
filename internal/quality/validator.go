package quality

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Validator runs the check battery. It keeps no state between calls, so one
// Validator may serve any number of concurrent validations.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a Validator that logs failing checks to logger. A nil
// logger discards.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{logger: logger}
}

// RunAllChecks runs, in order: a null check per column, the duplicate check,
// the schema check, a range check per configured range, and the row count
// check. Checks whose inputs are absent are not emitted: the duplicate check
// needs at least one column, the schema check needs required columns, a
// range check needs its column to be numeric, and the row count check needs a
// bound.
func (v *Validator) RunAllChecks(ds domain.Dataset, cfg Config) Report {
	var checks []CheckResult
	checks = append(checks, v.checkNulls(ds, cfg.NullThreshold)...)
	if ds.Width() > 0 {
		checks = append(checks, v.checkDuplicates(ds))
	}
	if len(cfg.RequiredColumns) > 0 {
		checks = append(checks, v.checkSchema(ds, cfg.RequiredColumns))
	}
	checks = append(checks, v.checkRanges(ds, cfg.ValueRanges)...)
	if cfg.MinRows > 0 || cfg.MaxRows > 0 {
		checks = append(checks, v.checkRowCount(ds, cfg.MinRows, cfg.MaxRows))
	}

	report := Report{
		Score:     Score(checks),
		Checks:    checks,
		Timestamp: domain.Now(),
	}
	v.logger.Info("quality validation complete", "report", report)
	return report
}

func (v *Validator) checkNulls(ds domain.Dataset, threshold float64) []CheckResult {
	out := make([]CheckResult, 0, ds.Width())
	for _, col := range ds.Columns() {
		frac := fraction(ds.NullCount(col), ds.Len())
		passed := frac <= threshold
		out = append(out, CheckResult{
			Check:     CheckNullPercentage,
			Column:    col,
			Value:     frac,
			Threshold: strconv.FormatFloat(threshold, 'f', -1, 64),
			Passed:    passed,
		})
		if !passed {
			v.logger.Warn("column null percentage above threshold",
				"column", col,
				"null_pct", 100*frac,
				"threshold_pct", 100*threshold,
			)
		}
	}
	return out
}

func (v *Validator) checkDuplicates(ds domain.Dataset) CheckResult {
	dups := ds.DuplicateCount()
	frac := fraction(dups, ds.Len())
	if dups > 0 {
		v.logger.Warn("duplicate rows found", "count", dups, "pct", 100*frac)
	}
	return CheckResult{
		Check:     CheckDuplicates,
		Column:    AllColumns,
		Value:     frac,
		Threshold: "0",
		Passed:    dups == 0,
	}
}

func (v *Validator) checkSchema(ds domain.Dataset, required []string) CheckResult {
	missing := ds.MissingColumns(required)
	if len(missing) > 0 {
		v.logger.Error("missing required columns", "missing", missing)
	}
	return CheckResult{
		Check:     CheckSchema,
		Column:    AllColumns,
		Value:     float64(len(missing)),
		Missing:   missing,
		Threshold: "all_required",
		Passed:    len(missing) == 0,
	}
}

func (v *Validator) checkRanges(ds domain.Dataset, ranges []Range) []CheckResult {
	var out []CheckResult
	for _, r := range ranges {
		if ds.ColumnKind(r.Column) != domain.KindNumber {
			continue
		}
		outside := 0
		for _, val := range ds.Column(r.Column) {
			if f, ok := val.Number(); ok && (f < r.Min || f > r.Max) {
				outside++
			}
		}
		if outside > 0 {
			v.logger.Warn("values outside range",
				"column", r.Column,
				"count", outside,
				"min", r.Min,
				"max", r.Max,
			)
		}
		out = append(out, CheckResult{
			Check:     CheckValueRange,
			Column:    r.Column,
			Value:     float64(outside),
			Threshold: fmt.Sprintf("%g-%g", r.Min, r.Max),
			Passed:    outside == 0,
		})
	}
	return out
}

func (v *Validator) checkRowCount(ds domain.Dataset, minRows, maxRows int) CheckResult {
	n := ds.Len()
	passed := n >= minRows && (maxRows <= 0 || n <= maxRows)
	upper := "inf"
	if maxRows > 0 {
		upper = strconv.Itoa(maxRows)
	}
	if !passed {
		v.logger.Warn("row count outside expected range", "rows", n, "min", minRows, "max", upper)
	}
	return CheckResult{
		Check:     CheckRowCount,
		Column:    AllColumns,
		Value:     float64(n),
		Threshold: fmt.Sprintf("%d-%s", minRows, upper),
		Passed:    passed,
	}
}

// fraction returns n/total, or 0 for an empty dataset.
func fraction(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

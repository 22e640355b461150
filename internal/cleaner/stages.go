package cleaner

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// outlierWhisker is the IQR multiplier for the outlier bounds.
const outlierWhisker = 1.5

func (c *Cleaner) deduplicate(ds domain.Dataset, _ Config) (domain.Dataset, []string) {
	mask := ds.DuplicateMask()
	out := ds.Filter(func(i int) bool { return !mask[i] })
	c.logger.Info("removed duplicate rows", "removed", ds.Len()-out.Len())
	return out, nil
}

// dropCriticalNulls measures every column's null percentage once, on the
// dataset entering the stage, then drops the null rows of each critical column
// over the limit in dataset order.
func (c *Cleaner) dropCriticalNulls(ds domain.Dataset, cfg Config) (domain.Dataset, []string) {
	if ds.Len() == 0 {
		return ds, nil
	}
	var over []string
	for _, col := range ds.Columns() {
		nulls := ds.NullCount(col)
		if nulls == 0 {
			continue
		}
		pct := 100 * float64(nulls) / float64(ds.Len())
		c.logger.Info("column has null values", "column", col, "null_pct", round2(pct))
		if slices.Contains(cfg.CriticalColumns, col) && pct > CriticalNullPercent {
			over = append(over, col)
		}
	}

	cur := ds
	for _, col := range over {
		src := cur
		j, _ := src.ColumnIndex(col)
		cur = src.Filter(func(i int) bool { return !src.At(i, j).IsNull() })
		c.logger.Info("dropped rows with null in critical column", "column", col, "removed", src.Len()-cur.Len())
	}
	return cur, over
}

// coerceNumeric converts a text column to numbers only when every non-null
// value parses. A single failure leaves the whole column as it was.
func (c *Cleaner) coerceNumeric(ds domain.Dataset, _ Config) (domain.Dataset, []string) {
	var coerced []string
	cur := ds
	for _, col := range ds.Columns() {
		kind := cur.ColumnKind(col)
		if kind != domain.KindString && kind != domain.KindMixed {
			continue
		}
		values, ok := parseNumbers(cur.Column(col))
		if !ok {
			continue
		}
		next, err := cur.WithColumn(col, values)
		if err != nil {
			continue
		}
		cur = next
		coerced = append(coerced, col)
	}
	if len(coerced) > 0 {
		c.logger.Info("coerced text columns to numeric", "columns", coerced)
	}
	return cur, coerced
}

func parseNumbers(in []domain.Value) ([]domain.Value, bool) {
	out := make([]domain.Value, len(in))
	for i, v := range in {
		switch v.Kind() {
		case domain.KindNull, domain.KindNumber:
			out[i] = v
		case domain.KindString:
			s, _ := v.Str()
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, false
			}
			out[i] = domain.NumberValue(f)
		default:
			return nil, false
		}
	}
	return out, true
}

// filterOutliers applies each configured column's bounds to the rows that
// survived the previous column. A row is kept only when its value is a number
// inside the bounds, so nulls in a filtered column are dropped too.
func (c *Cleaner) filterOutliers(ds domain.Dataset, cfg Config) (domain.Dataset, []string) {
	var filtered []string
	cur := ds
	for _, col := range cfg.OutlierColumns {
		if cur.ColumnKind(col) != domain.KindNumber {
			continue
		}
		lower, upper, ok := IQRBounds(numbers(cur.Column(col)))
		if !ok {
			continue
		}
		src := cur
		j, _ := src.ColumnIndex(col)
		cur = src.Filter(func(i int) bool {
			f, isNum := src.At(i, j).Number()
			return isNum && f >= lower && f <= upper
		})
		filtered = append(filtered, col)
		c.logger.Info("removed outliers",
			"column", col,
			"removed", src.Len()-cur.Len(),
			"lower_bound", lower,
			"upper_bound", upper,
		)
	}
	return cur, filtered
}

func (c *Cleaner) standardizeText(ds domain.Dataset, _ Config) (domain.Dataset, []string) {
	lower := cases.Lower(language.Und)
	var changed []string
	cur := ds
	for _, col := range ds.Columns() {
		kind := cur.ColumnKind(col)
		if kind != domain.KindString && kind != domain.KindMixed {
			continue
		}
		fold := lowercasedColumn(col)
		values := cur.Column(col)
		for i, v := range values {
			s, ok := v.Str()
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if fold {
				s = lower.String(s)
			}
			values[i] = domain.StringValue(s)
		}
		next, err := cur.WithColumn(col, values)
		if err != nil {
			continue
		}
		cur = next
		changed = append(changed, col)
	}
	return cur, changed
}

// lowercasedColumn reports whether a column's values are case-insensitive by
// name: anything mentioning a country or an email address.
func lowercasedColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "country") || strings.Contains(n, "email")
}

func numbers(values []domain.Value) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.Number(); ok {
			out = append(out, f)
		}
	}
	return out
}

// IQRBounds returns the outlier bounds Q1-1.5·IQR and Q3+1.5·IQR for values.
// ok is false when values is empty.
func IQRBounds(values []float64) (lower, upper float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - outlierWhisker*iqr, q3 + outlierWhisker*iqr, true
}

// Quantile returns the q-th quantile of sorted by linear interpolation between
// the closest ranks, at position (n-1)·q.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

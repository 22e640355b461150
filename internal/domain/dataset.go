package domain

import (
	"fmt"
	"sort"
)

// Dataset is an ordered, row-major table of Values. Every row is aligned to
// the same column list.
//
// A Dataset is immutable once built: every operation returns a new Dataset and
// leaves the receiver untouched. Unchanged rows may be shared between a
// Dataset and the ones derived from it, which is safe because rows are never
// written after construction.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewDataset builds a Dataset from column names and rows. The Dataset takes
// ownership of rows; callers must not modify them afterwards.
func NewDataset(columns []string, rows [][]Value) (Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return Dataset{}, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return Dataset{}, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(columns))
		}
	}
	return Dataset{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    rows,
	}, nil
}

// MustDataset is NewDataset for literals known to be well formed. It panics on error.
func MustDataset(columns []string, rows [][]Value) Dataset {
	ds, err := NewDataset(columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

// FromRecords builds a Dataset from maps keyed by column name. Keys missing from
// a record become null. When columns is nil the sorted union of all keys is used.
func FromRecords(columns []string, records []map[string]any) Dataset {
	if columns == nil {
		seen := make(map[string]struct{})
		for _, r := range records {
			for k := range r {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}
	rows := make([][]Value, len(records))
	for i, r := range records {
		row := make([]Value, len(columns))
		for j, c := range columns {
			row[j] = ValueOf(r[c])
		}
		rows[i] = row
	}
	return MustDataset(columns, rows)
}

// Columns returns a copy of the column names in order.
func (d Dataset) Columns() []string { return append([]string(nil), d.columns...) }

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.rows) }

// Width returns the number of columns.
func (d Dataset) Width() int { return len(d.columns) }

func (d Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

func (d Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// At returns the value at row i, column j.
func (d Dataset) At(i, j int) Value { return d.rows[i][j] }

// Value returns the value of the named column in row i, or null when the
// column does not exist.
func (d Dataset) Value(i int, column string) Value {
	j, ok := d.index[column]
	if !ok {
		return NullValue()
	}
	return d.rows[i][j]
}

// Column returns a copy of the named column's values, or nil if absent.
func (d Dataset) Column(name string) []Value {
	j, ok := d.index[name]
	if !ok {
		return nil
	}
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out
}

// RowValues returns a copy of row i in column order.
func (d Dataset) RowValues(i int) []Value { return append([]Value(nil), d.rows[i]...) }

// Row returns row i keyed by column name.
func (d Dataset) Row(i int) map[string]Value {
	out := make(map[string]Value, len(d.columns))
	for j, c := range d.columns {
		out[c] = d.rows[i][j]
	}
	return out
}

// Records returns every row as a map of plain Go values (nil, float64, string, time.Time).
func (d Dataset) Records() []map[string]any {
	out := make([]map[string]any, len(d.rows))
	for i, r := range d.rows {
		rec := make(map[string]any, len(d.columns))
		for j, c := range d.columns {
			rec[c] = r[j].Any()
		}
		out[i] = rec
	}
	return out
}

// Filter returns the rows for which keep returns true, in their original order.
func (d Dataset) Filter(keep func(i int) bool) Dataset {
	rows := make([][]Value, 0, len(d.rows))
	for i, r := range d.rows {
		if keep(i) {
			rows = append(rows, r)
		}
	}
	return Dataset{columns: d.columns, index: d.index, rows: rows}
}

// WithColumn returns a Dataset where the named column holds values. An existing
// column is replaced in place; a new one is appended.
func (d Dataset) WithColumn(name string, values []Value) (Dataset, error) {
	if len(values) != len(d.rows) {
		return Dataset{}, fmt.Errorf("column %q has %d values, want %d", name, len(values), len(d.rows))
	}
	j, exists := d.index[name]
	columns := d.columns
	index := d.index
	if !exists {
		columns = append(append(make([]string, 0, len(d.columns)+1), d.columns...), name)
		index = make(map[string]int, len(columns))
		for i, c := range columns {
			index[c] = i
		}
		j = len(columns) - 1
	}
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		row := make([]Value, len(columns))
		copy(row, r)
		row[j] = values[i]
		rows[i] = row
	}
	return Dataset{columns: columns, index: index, rows: rows}, nil
}

// Select projects the Dataset onto columns, in the given order.
func (d Dataset) Select(columns ...string) (Dataset, error) {
	if missing := d.MissingColumns(columns); len(missing) > 0 {
		return Dataset{}, &SchemaError{Missing: missing}
	}
	src := make([]int, len(columns))
	for k, c := range columns {
		src[k] = d.index[c]
	}
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		row := make([]Value, len(columns))
		for k, j := range src {
			row[k] = r[j]
		}
		rows[i] = row
	}
	return NewDataset(columns, rows)
}

// MissingColumns returns the entries of required that are not columns of d,
// sorted and without duplicates.
func (d Dataset) MissingColumns(required []string) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, c := range required {
		if _, ok := d.index[c]; ok {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		missing = append(missing, c)
	}
	sort.Strings(missing)
	return missing
}

// ColumnKind reports the kind shared by the column's non-null values: KindNull
// when all are null (or the column is missing), KindMixed when they disagree.
func (d Dataset) ColumnKind(name string) Kind {
	j, ok := d.index[name]
	if !ok {
		return KindNull
	}
	kind := KindNull
	for _, r := range d.rows {
		k := r[j].Kind()
		if k == KindNull {
			continue
		}
		if kind == KindNull {
			kind = k
			continue
		}
		if kind != k {
			return KindMixed
		}
	}
	return kind
}

// NullCount returns the number of null values in the named column.
func (d Dataset) NullCount(name string) int {
	j, ok := d.index[name]
	if !ok {
		return 0
	}
	n := 0
	for _, r := range d.rows {
		if r[j].IsNull() {
			n++
		}
	}
	return n
}

// Equal reports whether d and o have the same columns in the same order and
// equal rows.
func (d Dataset) Equal(o Dataset) bool {
	if len(d.columns) != len(o.columns) || len(d.rows) != len(o.rows) {
		return false
	}
	for i, c := range d.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i := range d.rows {
		if !RowsEqual(d.rows[i], o.rows[i]) {
			return false
		}
	}
	return true
}

// RowsEqual compares two rows value for value.
func RowsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

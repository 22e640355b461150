package cleaner_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

var (
	str  = domain.StringValue
	num  = domain.NumberValue
	null = domain.NullValue
)

func newCleaner() *cleaner.Cleaner {
	return cleaner.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func transactions() domain.Dataset {
	return domain.MustDataset(
		[]string{"InvoiceNo", "StockCode", "Quantity", "UnitPrice", "Country"},
		[][]domain.Value{
			{str("A1"), str("S1"), str("1"), str("2.0"), str(" UK ")},
			{str("A2"), str("S2"), str("2"), str("3.0"), str("uk")},
			{str("A3"), str("S3"), str("3"), str("2.5"), str("France")},
			{str("A4"), str("S4"), str("4"), str("2.0"), str("UK")},
			{str("A5"), str("S5"), str("5"), str("3.5"), str("Germany")},
			{str("A1"), str("S1"), str("1"), str("2.0"), str(" UK ")},
			{str("A6"), str("S6"), str("500"), str("2.0"), str("UK")},
		},
	)
}

func TestStages_Order(t *testing.T) {
	assert.Equal(t, []string{
		cleaner.StageDeduplicate,
		cleaner.StageCriticalNulls,
		cleaner.StageCoerceNumeric,
		cleaner.StageFilterOutliers,
		cleaner.StageStandardizeText,
	}, cleaner.Stages())
}

func TestClean_Transactions(t *testing.T) {
	out, stats := newCleaner().Clean(transactions(), cleaner.DefaultConfig())

	want := []map[string]any{
		{"InvoiceNo": "A1", "StockCode": "S1", "Quantity": 1.0, "UnitPrice": 2.0, "Country": "uk"},
		{"InvoiceNo": "A2", "StockCode": "S2", "Quantity": 2.0, "UnitPrice": 3.0, "Country": "uk"},
		{"InvoiceNo": "A3", "StockCode": "S3", "Quantity": 3.0, "UnitPrice": 2.5, "Country": "france"},
		{"InvoiceNo": "A4", "StockCode": "S4", "Quantity": 4.0, "UnitPrice": 2.0, "Country": "uk"},
		{"InvoiceNo": "A5", "StockCode": "S5", "Quantity": 5.0, "UnitPrice": 3.5, "Country": "germany"},
	}
	if diff := cmp.Diff(want, out.Records()); diff != "" {
		t.Errorf("cleaned rows mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 7, stats.InputRows)
	assert.Equal(t, 5, stats.OutputRows)
	assert.Equal(t, 2, stats.RowsRemoved)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.InDelta(t, 28.57, stats.RemovalPercentage, 1e-9)

	outliers, ok := stats.Stage(cleaner.StageFilterOutliers)
	require.True(t, ok)
	assert.Equal(t, 1, outliers.Removed())
	assert.Equal(t, []string{"Quantity", "UnitPrice"}, outliers.Columns)

	coerced, ok := stats.Stage(cleaner.StageCoerceNumeric)
	require.True(t, ok)
	assert.Equal(t, []string{"Quantity", "UnitPrice"}, coerced.Columns)
}

func TestClean_DoesNotModifyInput(t *testing.T) {
	in := transactions()
	before := in.Records()

	newCleaner().Clean(in, cleaner.DefaultConfig())

	assert.Empty(t, cmp.Diff(before, in.Records()))
}

func TestClean_Idempotent(t *testing.T) {
	c := newCleaner()
	cfg := cleaner.DefaultConfig()

	once, _ := c.Clean(transactions(), cfg)
	twice, stats := c.Clean(once, cfg)

	assert.True(t, once.Equal(twice), "second pass must be a no-op")
	assert.Zero(t, stats.RowsRemoved)
}

func TestClean_RowsRemovedMatchesLengths(t *testing.T) {
	inputs := []domain.Dataset{
		transactions(),
		domain.MustDataset([]string{"x"}, nil),
		domain.MustDataset([]string{"x"}, [][]domain.Value{{num(1)}, {num(1)}, {null()}}),
	}
	for _, in := range inputs {
		out, stats := newCleaner().Clean(in, cleaner.DefaultConfig())
		assert.Equal(t, in.Len()-out.Len(), stats.RowsRemoved)
		assert.GreaterOrEqual(t, stats.RowsRemoved, 0)
	}
}

func TestClean_EmptyDataset(t *testing.T) {
	out, stats := newCleaner().Clean(domain.MustDataset([]string{"InvoiceNo"}, nil), cleaner.DefaultConfig())

	assert.Zero(t, out.Len())
	assert.Zero(t, stats.RowsRemoved)
	assert.Zero(t, stats.RemovalPercentage)
}

func TestDeduplicate_KeepsFirstOccurrence(t *testing.T) {
	in := domain.MustDataset([]string{"id", "note"}, [][]domain.Value{
		{num(1), str("first")},
		{num(2), str("b")},
		{num(1), str("first")},
		{num(1), str("other")},
	})

	out, stats := newCleaner().Clean(in, cleaner.Config{})

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	note, _ := out.Value(2, "note").Str()
	assert.Equal(t, "other", note)
}

func criticalNullDataset(nullInvoices int) domain.Dataset {
	rows := make([][]domain.Value, 20)
	for i := range rows {
		invoice := str("INV")
		if i < nullInvoices {
			invoice = null()
		}
		desc := str("item")
		if i%2 == 0 {
			desc = null()
		}
		rows[i] = []domain.Value{num(float64(i)), invoice, desc}
	}
	return domain.MustDataset([]string{"id", "InvoiceNo", "Description"}, rows)
}

func TestDropCriticalNulls(t *testing.T) {
	cfg := cleaner.Config{CriticalColumns: []string{"InvoiceNo"}}

	t.Run("above five percent drops null rows", func(t *testing.T) {
		out, _ := newCleaner().Clean(criticalNullDataset(2), cfg)

		assert.Equal(t, 18, out.Len())
		assert.Zero(t, out.NullCount("InvoiceNo"))
		assert.Positive(t, out.NullCount("Description"), "non-critical nulls persist")
	})

	t.Run("exactly five percent keeps rows", func(t *testing.T) {
		out, _ := newCleaner().Clean(criticalNullDataset(1), cfg)

		assert.Equal(t, 20, out.Len())
		assert.Equal(t, 1, out.NullCount("InvoiceNo"))
	})

	t.Run("non-critical column is never dropped", func(t *testing.T) {
		out, _ := newCleaner().Clean(criticalNullDataset(0), cfg)

		assert.Equal(t, 20, out.Len())
		assert.Equal(t, 10, out.NullCount("Description"))
	})
}

func TestDropCriticalNulls_MeasuresOnStageInput(t *testing.T) {
	// InvoiceNo is null in rows 0-9 and StockCode in rows 8-13. StockCode is at
	// 6% on entry; after the InvoiceNo drop only 4 of 90 rows would remain null.
	rows := make([][]domain.Value, 100)
	for i := range rows {
		invoice, stock := str("INV"), str("SKU")
		if i <= 9 {
			invoice = null()
		}
		if i >= 8 && i <= 13 {
			stock = null()
		}
		rows[i] = []domain.Value{num(float64(i)), invoice, stock}
	}
	in := domain.MustDataset([]string{"id", "InvoiceNo", "StockCode"}, rows)

	out, stats := newCleaner().Clean(in, cleaner.Config{CriticalColumns: []string{"InvoiceNo", "StockCode"}})

	assert.Equal(t, 86, out.Len())
	assert.Zero(t, out.NullCount("InvoiceNo"))
	assert.Zero(t, out.NullCount("StockCode"))

	nulls, ok := stats.Stage(cleaner.StageCriticalNulls)
	require.True(t, ok)
	assert.Equal(t, []string{"InvoiceNo", "StockCode"}, nulls.Columns)
}

func TestCoerceNumeric_AllOrNothing(t *testing.T) {
	in := domain.MustDataset([]string{"qty", "code"}, [][]domain.Value{
		{str(" 3"), str("1")},
		{str("4.5"), str(" x ")},
		{null(), str("2")},
	})

	out, _ := newCleaner().Clean(in, cleaner.Config{})

	assert.Equal(t, domain.KindNumber, out.ColumnKind("qty"))
	assert.True(t, out.Value(2, "qty").IsNull())
	assert.Equal(t, domain.KindString, out.ColumnKind("code"))
	code, _ := out.Value(1, "code").Str()
	assert.Equal(t, "x", code)
}

func TestFilterOutliers_Bounds(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 100}

	lower, upper, ok := cleaner.IQRBounds(values)
	require.True(t, ok)
	assert.InDelta(t, -1.5, lower, 1e-9)
	assert.InDelta(t, 8.5, upper, 1e-9)

	rows := make([][]domain.Value, len(values))
	for i, v := range values {
		rows[i] = []domain.Value{num(v)}
	}
	out, _ := newCleaner().Clean(domain.MustDataset([]string{"Quantity"}, rows), cleaner.Config{OutlierColumns: []string{"Quantity"}})

	assert.Equal(t, 5, out.Len())
	for i := range out.Len() {
		f, _ := out.Value(i, "Quantity").Number()
		assert.NotEqual(t, 100.0, f)
	}
}

func TestFilterOutliers_Cumulative(t *testing.T) {
	// The two A=1000 rows go first; B's bounds are then computed over the
	// survivors, which puts B=20 outside them.
	a := []float64{0, 0, 0, 0, 0, 0, 1000, 1000}
	b := []float64{1, 2, 3, 4, 5, 20, 50, 50}
	rows := make([][]domain.Value, len(a))
	for i := range a {
		rows[i] = []domain.Value{num(a[i]), num(b[i])}
	}
	in := domain.MustDataset([]string{"A", "B"}, rows)

	out, _ := newCleaner().Clean(in, cleaner.Config{OutlierColumns: []string{"A", "B"}})

	assert.Equal(t, 5, out.Len())
	var got []float64
	for i := range out.Len() {
		f, _ := out.Value(i, "B").Number()
		got = append(got, f)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, got)
}

func TestFilterOutliers_DropsNullsAndSkipsText(t *testing.T) {
	in := domain.MustDataset([]string{"Quantity", "Label"}, [][]domain.Value{
		{num(1), str("a")},
		{num(2), str("b")},
		{null(), str("c")},
		{num(3), str("d")},
		{num(4), null()},
		{num(5), str("f")},
	})

	out, stats := newCleaner().Clean(in, cleaner.Config{OutlierColumns: []string{"Quantity", "Label", "Missing"}})

	assert.Equal(t, 5, out.Len())
	assert.Zero(t, out.NullCount("Quantity"))
	assert.Equal(t, 1, out.NullCount("Label"), "text columns are not filtered")

	outliers, ok := stats.Stage(cleaner.StageFilterOutliers)
	require.True(t, ok)
	assert.Equal(t, 1, outliers.Removed())
	assert.Equal(t, []string{"Quantity"}, outliers.Columns)
}

func TestFilterOutliers_AllNullColumnIsSkipped(t *testing.T) {
	in := domain.MustDataset([]string{"Quantity", "UnitPrice"}, [][]domain.Value{
		{null(), num(1)},
		{null(), num(2)},
	})

	out, _ := newCleaner().Clean(in, cleaner.Config{OutlierColumns: []string{"Quantity"}})

	assert.Equal(t, 2, out.Len())
}

func TestStandardizeText(t *testing.T) {
	in := domain.MustDataset([]string{"Country", "customer_EMAIL", "Description"}, [][]domain.Value{
		{str(" United KINGDOM "), str(" A@B.COM"), str("  Blue Mug ")},
		{null(), str("x@y.org"), str("Plate")},
	})

	out, _ := newCleaner().Clean(in, cleaner.Config{})

	want := []map[string]any{
		{"Country": "united kingdom", "customer_EMAIL": "a@b.com", "Description": "Blue Mug"},
		{"Country": nil, "customer_EMAIL": "x@y.org", "Description": "Plate"},
	}
	assert.Empty(t, cmp.Diff(want, out.Records()))
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, cleaner.Quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, cleaner.Quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 4.0, cleaner.Quantile(sorted, 1), 1e-9)
	assert.InDelta(t, 7.0, cleaner.Quantile([]float64{7}, 0.25), 1e-9)
}

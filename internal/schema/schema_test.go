package schema_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/schema"
)

func rawTransaction() map[string]any {
	return map[string]any{
		"InvoiceNo":   "A1",
		"InvoiceDate": "2024-01-01",
		"CustomerID":  7,
		"StockCode":   "S1",
		"Description": "x",
		"Quantity":    3,
		"UnitPrice":   2.0,
		"Country":     "UK",
	}
}

func TestMapEcommerce(t *testing.T) {
	rec := rawTransaction()
	rec["total"] = 999.0 // stray source column, never copied
	in := domain.FromRecords(nil, []map[string]any{rec})

	out, err := schema.MapEcommerce(in)
	require.NoError(t, err)

	assert.Equal(t, schema.EcommerceColumns, out.Columns())
	want := []map[string]any{{
		"transaction_id":      "A1",
		"transaction_date":    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"customer_id":         7.0,
		"product_code":        "S1",
		"product_description": "x",
		"quantity":            3.0,
		"unit_price":          2.0,
		"total_price":         6.0,
		"country":             "UK",
		"source":              "ecommerce_db",
	}}
	if diff := cmp.Diff(want, out.Records()); diff != "" {
		t.Errorf("mapped record mismatch (-want +got):\n%s", diff)
	}
}

func TestMapEcommerce_TotalPriceAlwaysRecomputed(t *testing.T) {
	rec := rawTransaction()
	rec["Quantity"] = " 4"
	rec["UnitPrice"] = nil
	in := domain.FromRecords(nil, []map[string]any{rec, rawTransaction()})

	out, err := schema.MapEcommerce(in)
	require.NoError(t, err)

	assert.True(t, out.Value(0, "total_price").IsNull())
	total, ok := out.Value(1, "total_price").Number()
	require.True(t, ok)
	assert.Equal(t, 6.0, total)
}

func TestMapEcommerce_MissingColumn(t *testing.T) {
	rec := rawTransaction()
	delete(rec, "InvoiceNo")
	delete(rec, "Country")

	_, err := schema.MapEcommerce(domain.FromRecords(nil, []map[string]any{rec}))

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"Country", "InvoiceNo"}, schemaErr.Missing)
}

func TestMapEcommerce_EmptyDataset(t *testing.T) {
	in := domain.MustDataset(schema.EcommerceSourceColumns, nil)

	out, err := schema.MapEcommerce(in)
	require.NoError(t, err)
	assert.Zero(t, out.Len())
	assert.Equal(t, schema.EcommerceColumns, out.Columns())
}

func TestMapWeather(t *testing.T) {
	in := domain.FromRecords(schema.WeatherSourceColumns, []map[string]any{
		{"date": "2024-03-01", "temp_max": 11.2, "temp_min": 4.1, "precipitation": 0.0},
		{"date": "2024-03-02", "temp_max": 9.8, "temp_min": nil, "precipitation": 2.4},
	})

	out, err := schema.MapWeather(in)
	require.NoError(t, err)

	want := []map[string]any{
		{"date": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "temp_max_c": 11.2, "temp_min_c": 4.1, "precipitation_mm": 0.0, "source": "weather_api"},
		{"date": time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "temp_max_c": 9.8, "temp_min_c": nil, "precipitation_mm": 2.4, "source": "weather_api"},
	}
	assert.Empty(t, cmp.Diff(want, out.Records()))
}

func TestMapWeather_MissingColumn(t *testing.T) {
	in := domain.FromRecords([]string{"date", "temp_max"}, nil)

	_, err := schema.MapWeather(in)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"precipitation", "temp_min"}, schemaErr.Missing)
}

func TestValidateSchema(t *testing.T) {
	ds := domain.MustDataset([]string{"a", "b", "c"}, nil)

	assert.NoError(t, schema.ValidateSchema(ds, []string{"a", "c"}))
	assert.NoError(t, schema.ValidateSchema(ds, nil))

	err := schema.ValidateSchema(ds, []string{"a", "z"})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"z"}, schemaErr.Missing)
}

func TestParseTimestamp(t *testing.T) {
	utc := func(y int, m time.Month, d, h, min int) time.Time { return time.Date(y, m, d, h, min, 0, 0, time.UTC) }

	for _, tc := range []struct {
		in   domain.Value
		want any
	}{
		{domain.StringValue("2024-01-01"), utc(2024, 1, 1, 0, 0)},
		{domain.StringValue("2010-12-01 08:26:00"), utc(2010, 12, 1, 8, 26)},
		{domain.StringValue("12/1/2010 8:26"), utc(2010, 12, 1, 8, 26)},
		{domain.StringValue("2024-05-06T07:08:00Z"), utc(2024, 5, 6, 7, 8)},
		{domain.TimeValue(utc(2020, 2, 2, 2, 2)), utc(2020, 2, 2, 2, 2)},
		{domain.StringValue("not a date"), nil},
		{domain.NumberValue(20240101), nil},
		{domain.NullValue(), nil},
	} {
		got := schema.ParseTimestamp(tc.in).Any()
		assert.Empty(t, cmp.Diff(tc.want, got), "input %v", tc.in)
	}
}

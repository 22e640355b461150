// Package schema maps source-shaped datasets onto the fixed target table
// layouts and checks that a dataset carries the columns a caller relies on.
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Source tags written to the source column of each target table.
const (
	SourceEcommerce = "ecommerce_db"
	SourceWeather   = "weather_api"
)

// Raw column names read from the transactional source.
var EcommerceSourceColumns = []string{
	"InvoiceNo", "InvoiceDate", "CustomerID", "StockCode",
	"Description", "Quantity", "UnitPrice", "Country",
}

// Target columns of the ecommerce_transactions table, in order.
var EcommerceColumns = []string{
	"transaction_id", "transaction_date", "customer_id", "product_code",
	"product_description", "quantity", "unit_price", "total_price",
	"country", "source",
}

// Raw column names produced by the weather provider.
var WeatherSourceColumns = []string{"date", "temp_max", "temp_min", "precipitation"}

// Target columns of the weather_data table, in order.
var WeatherColumns = []string{"date", "temp_max_c", "temp_min_c", "precipitation_mm", "source"}

// MapEcommerce renames the raw transaction columns to the target layout,
// parses transaction_date, recomputes total_price as quantity × unit_price and
// tags every row with the ecommerce source. Extra source columns are dropped.
func MapEcommerce(ds domain.Dataset) (domain.Dataset, error) {
	if err := ValidateSchema(ds, EcommerceSourceColumns); err != nil {
		return domain.Dataset{}, err
	}

	rows := make([][]domain.Value, ds.Len())
	for i := range rows {
		qty := ds.Value(i, "Quantity")
		price := ds.Value(i, "UnitPrice")
		rows[i] = []domain.Value{
			ds.Value(i, "InvoiceNo"),
			ParseTimestamp(ds.Value(i, "InvoiceDate")),
			ds.Value(i, "CustomerID"),
			ds.Value(i, "StockCode"),
			ds.Value(i, "Description"),
			qty,
			price,
			multiply(qty, price),
			ds.Value(i, "Country"),
			domain.StringValue(SourceEcommerce),
		}
	}
	return domain.NewDataset(EcommerceColumns, rows)
}

// MapWeather renames the provider's daily columns to the target layout and
// parses the date.
func MapWeather(ds domain.Dataset) (domain.Dataset, error) {
	if err := ValidateSchema(ds, WeatherSourceColumns); err != nil {
		return domain.Dataset{}, err
	}

	rows := make([][]domain.Value, ds.Len())
	for i := range rows {
		rows[i] = []domain.Value{
			ParseTimestamp(ds.Value(i, "date")),
			ds.Value(i, "temp_max"),
			ds.Value(i, "temp_min"),
			ds.Value(i, "precipitation"),
			domain.StringValue(SourceWeather),
		}
	}
	return domain.NewDataset(WeatherColumns, rows)
}

// ValidateSchema returns a *domain.SchemaError naming every required column
// missing from ds.
func ValidateSchema(ds domain.Dataset, required []string) error {
	if missing := ds.MissingColumns(required); len(missing) > 0 {
		return &domain.SchemaError{Missing: missing}
	}
	return nil
}

func multiply(a, b domain.Value) domain.Value {
	x, ok := asNumber(a)
	if !ok {
		return domain.NullValue()
	}
	y, ok := asNumber(b)
	if !ok {
		return domain.NullValue()
	}
	return domain.NumberValue(x * y)
}

func asNumber(v domain.Value) (float64, bool) {
	if f, ok := v.Number(); ok {
		return f, true
	}
	if s, ok := v.Str(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp converts a timestamp or date string to a timestamp value.
// Timestamps pass through; strings in a recognized layout are parsed as UTC
// unless they carry an offset. Anything else becomes null.
func ParseTimestamp(v domain.Value) domain.Value {
	if _, ok := v.Time(); ok {
		return v
	}
	s, ok := v.Str()
	if !ok {
		return domain.NullValue()
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.TimeValue(t)
		}
	}
	return domain.NullValue()
}

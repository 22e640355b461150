package pipeline

import (
	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/quality"
)

// Target table names.
const (
	TableTransactions = "ecommerce_transactions"
	TableWeather      = "weather_data"
)

// Settings are the per-deployment inputs of a run.
type Settings struct {
	SourceQuery string

	Latitude    float64
	Longitude   float64
	WeatherDays int

	TransactionsTable string
	WeatherTable      string

	// Quality gate thresholds, shared by both gates.
	NullThreshold float64
	MinRows       int
	MaxRows       int

	Cleaning cleaner.Config
}

// DefaultSettings returns the settings for the London store feed.
func DefaultSettings() Settings {
	return Settings{
		SourceQuery:       "SELECT * FROM raw_transactions",
		Latitude:          51.5074,
		Longitude:         -0.1278,
		WeatherDays:       30,
		TransactionsTable: TableTransactions,
		WeatherTable:      TableWeather,
		NullThreshold:     0.05,
		MinRows:           100,
		Cleaning:          cleaner.DefaultConfig(),
	}
}

// Target-shaped columns the gates look for before enabling the schema and
// range checks.
var (
	GateRequiredColumns = []string{"transaction_id", "transaction_date", "customer_id"}
	GateValueRanges     = []quality.Range{
		{Column: "quantity", Min: 0, Max: 10000},
		{Column: "unit_price", Min: 0, Max: 1000},
	}
)

// GateConfig builds the validator configuration for ds. Raw source data uses
// source-native column names, so the required-column check is enabled only
// once ds has a transaction_id column and the range checks only once it has a
// quantity column.
func GateConfig(ds domain.Dataset, s Settings) quality.Config {
	cfg := quality.Config{
		NullThreshold: s.NullThreshold,
		MinRows:       s.MinRows,
		MaxRows:       s.MaxRows,
	}
	if ds.HasColumn("transaction_id") {
		cfg.RequiredColumns = GateRequiredColumns
	}
	if ds.HasColumn("quantity") {
		cfg.ValueRanges = GateValueRanges
	}
	return cfg
}

// Package domain models the tabular records that flow through a batch run.
//
// # Data Model
//
// A [Dataset] is an ordered list of rows over a fixed, ordered column list.
// Each cell is a [Value] holding one of four scalar kinds:
//
//	number     float64; NaN is folded to null on construction
//	string     arbitrary text, untrimmed until the cleaner standardizes it
//	timestamp  time.Time; the zero time is folded to null
//	null       a missing value
//
// Columns are not typed. A column's kind is derived from its values by
// [Dataset.ColumnKind]: null when every value is null, mixed when non-null
// values disagree. Text columns read from a record store often hold numbers as
// strings ("12", " 3.50 "); the cleaner decides whether to coerce them.
//
// # Sources
//
// Transactional rows come from a relational source table (raw_transactions)
// with the columns InvoiceNo, StockCode, Description, Quantity, InvoiceDate,
// UnitPrice, CustomerID and Country. Weather rows come from a forecast
// provider as one row per day: date, temp_max, temp_min, precipitation.
//
// # Errors
//
// Failures are reported with four typed errors, matched with errors.As:
// [ExtractionError] (a source could not be read), [SchemaError] (required
// columns missing), [LoadError] (a target write failed) and
// [ConfigurationError] (a setting is missing or invalid at startup).
package domain

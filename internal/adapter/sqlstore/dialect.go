package sqlstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lib/pq"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Supported database/sql driver names.
const (
	DriverPostgres  = "postgres"
	DriverPgx       = "pgx"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
	DriverSnowflake = "snowflake"
)

// dialect holds the SQL differences between the supported drivers.
type dialect struct {
	name string

	// column types by value kind; anything missing maps to text.
	types map[domain.Kind]string
	text  string

	// maxParams bounds the bind parameters of one INSERT statement.
	maxParams int

	quote func(string) string

	// createIfMissing renders a CREATE TABLE that is a no-op when the table exists.
	createIfMissing func(table, columns string) string

	// bulk, when set, replaces batched INSERTs with the driver's bulk copy API.
	bulk bulkLoader
}

var dialects = map[string]dialect{
	DriverPostgres: {
		name:            DriverPostgres,
		types:           map[domain.Kind]string{domain.KindNumber: "DOUBLE PRECISION", domain.KindTime: "TIMESTAMPTZ"},
		text:            "TEXT",
		maxParams:       65535,
		quote:           pq.QuoteIdentifier,
		createIfMissing: createIfNotExists,
	},
	DriverPgx: {
		name:            DriverPgx,
		types:           map[domain.Kind]string{domain.KindNumber: "DOUBLE PRECISION", domain.KindTime: "TIMESTAMPTZ"},
		text:            "TEXT",
		maxParams:       65535,
		quote:           pq.QuoteIdentifier,
		createIfMissing: createIfNotExists,
		bulk:            pgxCopy,
	},
	DriverSQLite: {
		name:            DriverSQLite,
		types:           map[domain.Kind]string{domain.KindNumber: "REAL", domain.KindTime: "TIMESTAMP"},
		text:            "TEXT",
		maxParams:       32766,
		quote:           pq.QuoteIdentifier,
		createIfMissing: createIfNotExists,
	},
	DriverSQLServer: {
		name:      DriverSQLServer,
		types:     map[domain.Kind]string{domain.KindNumber: "FLOAT", domain.KindTime: "DATETIMEOFFSET"},
		text:      "NVARCHAR(MAX)",
		maxParams: 2100,
		quote:     msIdent,
		createIfMissing: func(table, columns string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
				strings.ReplaceAll(table, "'", "''"), table, columns)
		},
		bulk: mssqlCopy,
	},
	DriverSnowflake: {
		name:            DriverSnowflake,
		types:           map[domain.Kind]string{domain.KindNumber: "FLOAT", domain.KindTime: "TIMESTAMP_TZ"},
		text:            "VARCHAR",
		maxParams:       16384,
		quote:           pq.QuoteIdentifier,
		createIfMissing: createIfNotExists,
	},
}

// Drivers lists the supported driver names.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported driver %q (want one of %s)", driver, strings.Join(Drivers(), ", "))
	}
	return d, nil
}

// columnType maps a column's value kind to a column type. Null-only and mixed
// columns are stored as text.
func (d dialect) columnType(k domain.Kind) string {
	if t, ok := d.types[k]; ok {
		return t
	}
	return d.text
}

// columnDefs renders the column list of a CREATE TABLE for ds.
func (d dialect) columnDefs(ds domain.Dataset) string {
	defs := make([]string, ds.Width())
	for j, col := range ds.Columns() {
		defs[j] = d.quote(col) + " " + d.columnType(ds.ColumnKind(col))
	}
	return strings.Join(defs, ", ")
}

func (d dialect) quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
	}
	return strings.Join(quoted, ", ")
}

// batchRows returns how many rows of the given width fit in one INSERT.
func (d dialect) batchRows(width int) int {
	if width == 0 {
		return maxInsertRows
	}
	return max(1, min(maxInsertRows, d.maxParams/width))
}

// maxInsertRows caps a VALUES list; SQL Server rejects more than 1000 rows.
const maxInsertRows = 1000

func createIfNotExists(table, columns string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, columns)
}

func msIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

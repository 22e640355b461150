package sqlstore

import (
	"fmt"
	"net/url"
	"strconv"

	sf "github.com/snowflakedb/gosnowflake"

	// Drivers without an API this package calls directly.
	_ "modernc.org/sqlite"
)

// Endpoint holds discrete connection settings for building a DSN.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// Snowflake only. Host is the account identifier.
	Warehouse string
	Role      string
}

// BuildDSN renders e as a data source name for driver.
func BuildDSN(driver string, e Endpoint) (string, error) {
	switch driver {
	case DriverPostgres, DriverPgx:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(e.User, e.Password),
			Host:   hostPort(e.Host, e.Port),
			Path:   "/" + e.Name,
		}
		if e.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {e.SSLMode}}.Encode()
		}
		return u.String(), nil
	case DriverSQLServer:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(e.User, e.Password),
			Host:     hostPort(e.Host, e.Port),
			RawQuery: url.Values{"database": {e.Name}}.Encode(),
		}
		return u.String(), nil
	case DriverSnowflake:
		dsn, err := sf.DSN(&sf.Config{
			Account:   e.Host,
			User:      e.User,
			Password:  e.Password,
			Database:  e.Name,
			Warehouse: e.Warehouse,
			Role:      e.Role,
		})
		if err != nil {
			return "", fmt.Errorf("snowflake dsn: %w", err)
		}
		return dsn, nil
	case DriverSQLite:
		// The database name is the file path.
		return e.Name, nil
	default:
		_, err := lookupDialect(driver)
		return "", err
	}
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

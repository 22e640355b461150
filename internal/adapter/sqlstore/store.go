// Package sqlstore reads source rows from, and loads datasets into, SQL
// databases through database/sql drivers. One Store serves either side of a
// run: Extract for the source record store, Load and VerifyLoad for the target.
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Options configure a Store connection.
type Options struct {
	Driver string
	DSN    string

	// Name labels the store in logs and errors, e.g. "source database".
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Store is a SQL database behind one of the supported drivers.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	name    string
	logger  *slog.Logger
}

// Open connects to the database described by opts and pings it.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", opts.Driver)
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	s := newStore(db, d, opts.Name, logger)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", opts.Driver, err)
	}

	s.logger.Info("database connected", "driver", d.name)
	return s, nil
}

// New wraps an open handle. driver selects the SQL dialect.
func New(db *sqlx.DB, driver, name string, logger *slog.Logger) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return newStore(db, d, name, logger), nil
}

func newStore(db *sqlx.DB, d dialect, name string, logger *slog.Logger) *Store {
	if name == "" {
		name = d.name
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		db:      db,
		dialect: d,
		name:    name,
		logger:  logger.With("store", name),
	}
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Load writes ds to table inside one transaction. ModeReplace drops and
// recreates the table from the dataset's column kinds; ModeAppend creates it
// only if missing. Any failure rolls back and returns a *domain.LoadError.
func (s *Store) Load(ctx context.Context, ds domain.Dataset, table string, mode domain.LoadMode) (domain.LoadResult, error) {
	start := domain.Now()
	if strings.TrimSpace(table) == "" {
		return domain.LoadResult{}, &domain.LoadError{Table: table, Err: errors.New("table name must not be empty")}
	}
	if ds.Width() == 0 {
		return domain.LoadResult{}, s.loadErr(table, errors.New("dataset has no columns"))
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return domain.LoadResult{}, s.loadErr(table, fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return domain.LoadResult{}, s.loadErr(table, fmt.Errorf("begin tx: %w", err))
	}
	rollback := func() { _ = tx.Rollback() }

	if err := s.prepareTable(ctx, tx, ds, table, mode); err != nil {
		rollback()
		return domain.LoadResult{}, s.loadErr(table, err)
	}

	rows := driverRows(ds)
	if len(rows) > 0 {
		if s.dialect.bulk != nil {
			err = s.dialect.bulk(ctx, conn, tx, s.dialect.quote(table), table, ds.Columns(), rows)
		} else {
			err = s.insertBatches(ctx, tx, table, ds.Columns(), rows)
		}
		if err != nil {
			rollback()
			return domain.LoadResult{}, s.loadErr(table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.LoadResult{}, s.loadErr(table, fmt.Errorf("commit: %w", err))
	}

	res := domain.LoadResult{
		Table:      table,
		RowsLoaded: ds.Len(),
		Duration:   domain.Since(start),
		Timestamp:  domain.Now(),
	}
	s.logger.Info("loaded table", "load", res, "mode", mode)
	return res, nil
}

func (s *Store) prepareTable(ctx context.Context, tx *sqlx.Tx, ds domain.Dataset, table string, mode domain.LoadMode) error {
	qt := s.dialect.quote(table)
	defs := s.dialect.columnDefs(ds)

	switch mode {
	case domain.ModeReplace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qt); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", qt, defs)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	case domain.ModeAppend:
		if _, err := tx.ExecContext(ctx, s.dialect.createIfMissing(qt, defs)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	default:
		return fmt.Errorf("unknown load mode %q", mode)
	}
	return nil
}

// insertBatches writes rows with multi-row INSERT statements sized to the
// dialect's bind parameter limit.
func (s *Store) insertBatches(ctx context.Context, tx *sqlx.Tx, table string, cols []string, rows [][]any) error {
	per := s.dialect.batchRows(len(cols))
	rowMarks := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.dialect.quote(table), s.dialect.quoteAll(cols))

	for lo := 0; lo < len(rows); lo += per {
		hi := min(lo+per, len(rows))
		marks := make([]string, hi-lo)
		args := make([]any, 0, (hi-lo)*len(cols))
		for i := lo; i < hi; i++ {
			marks[i-lo] = rowMarks
			args = append(args, rows[i]...)
		}
		query := tx.Rebind(prefix + strings.Join(marks, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", lo, hi-1, describeDBError(err))
		}
	}
	return nil
}

// VerifyLoad returns the number of rows currently in table.
func (s *Store) VerifyLoad(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+s.dialect.quote(table)); err != nil {
		return 0, s.loadErr(table, fmt.Errorf("count rows: %w", err))
	}
	return n, nil
}

func (s *Store) loadErr(table string, err error) error {
	return &domain.LoadError{Table: table, Err: err}
}

// driverRows converts ds to driver arguments. Columns stored as text receive
// the string form of every non-null value.
func driverRows(ds domain.Dataset) [][]any {
	cols := ds.Columns()
	textual := make([]bool, len(cols))
	for j, c := range cols {
		k := ds.ColumnKind(c)
		textual[j] = k != domain.KindNumber && k != domain.KindTime
	}

	rows := make([][]any, ds.Len())
	for i := range rows {
		row := make([]any, len(cols))
		for j := range cols {
			v := ds.At(i, j)
			switch {
			case v.IsNull():
				row[j] = nil
			case textual[j]:
				row[j] = v.String()
			default:
				row[j] = v.Any()
			}
		}
		rows[i] = row
	}
	return rows
}

// describeDBError surfaces Postgres error detail, which pgx keeps out of Error().
func describeDBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (detail: %s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

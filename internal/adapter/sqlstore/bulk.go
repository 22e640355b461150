package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
)

// bulkLoader writes rows through a driver-specific bulk API on the connection
// that holds tx, so the copy commits or rolls back with it.
type bulkLoader func(ctx context.Context, conn *sqlx.Conn, tx *sqlx.Tx, quotedTable, table string, cols []string, rows [][]any) error

// pgxCopy streams rows with the Postgres COPY protocol.
func pgxCopy(ctx context.Context, conn *sqlx.Conn, _ *sqlx.Tx, _, table string, cols []string, rows [][]any) error {
	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("copy: unexpected driver connection %T", driverConn)
		}
		n, err := sc.Conn().CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy: %w", describeDBError(err))
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("copy: wrote %d of %d rows", n, len(rows))
		}
		return nil
	})
}

// mssqlCopy uses the SQL Server bulk insert protocol.
func mssqlCopy(ctx context.Context, _ *sqlx.Conn, tx *sqlx.Tx, quotedTable, _ string, cols []string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(quotedTable, mssql.BulkOptions{}, cols...))
	if err != nil {
		return fmt.Errorf("prepare bulk: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			return fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("bulk finalize: %w", err)
	}
	return nil
}

package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// Extract runs a read query and returns its result set with columns in
// result order. Any failure is a *domain.ExtractionError.
func (s *Store) Extract(ctx context.Context, query string) (domain.Dataset, error) {
	start := domain.Now()

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return domain.Dataset{}, s.extractErr(fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.Dataset{}, s.extractErr(fmt.Errorf("columns: %w", err))
	}

	var out [][]domain.Value
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return domain.Dataset{}, s.extractErr(fmt.Errorf("scan row %d: %w", len(out), err))
		}
		row := make([]domain.Value, len(raw))
		for j, v := range raw {
			row[j] = domain.ValueOf(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return domain.Dataset{}, s.extractErr(fmt.Errorf("iterate rows: %w", err))
	}

	ds, err := domain.NewDataset(cols, out)
	if err != nil {
		return domain.Dataset{}, s.extractErr(err)
	}
	s.logger.Info("extracted rows", "source", s.name, "metadata", DescribeExtract(ds), "elapsed", domain.Since(start))
	return ds, nil
}

func (s *Store) extractErr(err error) error {
	return &domain.ExtractionError{Source: s.name, Err: err}
}

// Metadata describes an extracted dataset.
type Metadata struct {
	RowCount       int       `json:"row_count"`
	ColumnCount    int       `json:"column_count"`
	Columns        []string  `json:"columns"`
	ExtractionTime time.Time `json:"extraction_time"`
}

// DescribeExtract summarizes ds as of now.
func DescribeExtract(ds domain.Dataset) Metadata {
	return Metadata{
		RowCount:       ds.Len(),
		ColumnCount:    ds.Width(),
		Columns:        ds.Columns(),
		ExtractionTime: domain.Now(),
	}
}

// LogValue implements slog.LogValuer.
func (m Metadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("row_count", m.RowCount),
		slog.Int("column_count", m.ColumnCount),
		slog.Any("columns", m.Columns),
		slog.Time("extraction_time", m.ExtractionTime),
	)
}

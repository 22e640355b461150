package domain

import (
	"log/slog"
	"time"
)

// LoadMode selects how a dataset is written to a target table.
type LoadMode string

const (
	// ModeReplace drops and recreates the table, then inserts every row.
	ModeReplace LoadMode = "replace"
	// ModeAppend inserts rows into an existing table of matching shape.
	ModeAppend LoadMode = "append"
)

// LoadResult describes one completed table load.
type LoadResult struct {
	Table      string        `json:"table_name"`
	RowsLoaded int           `json:"rows_loaded"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (r LoadResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("table", r.Table),
		slog.Int("rows_loaded", r.RowsLoaded),
		slog.Duration("duration", r.Duration),
	)
}

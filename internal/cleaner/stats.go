package cleaner

import "log/slog"

// StageStats records how one stage changed the dataset.
type StageStats struct {
	Name    string   `json:"name"`
	RowsIn  int      `json:"rows_in"`
	RowsOut int      `json:"rows_out"`
	Columns []string `json:"columns,omitempty"` // columns the stage acted on
}

// Removed returns the number of rows the stage dropped.
func (s StageStats) Removed() int { return s.RowsIn - s.RowsOut }

// Stats summarizes one Clean call.
type Stats struct {
	InputRows         int          `json:"input_rows"`
	OutputRows        int          `json:"output_rows"`
	RowsRemoved       int          `json:"rows_removed"`
	RemovalPercentage float64      `json:"removal_percentage"`
	DuplicatesRemoved int          `json:"duplicates_removed"`
	Stages            []StageStats `json:"stages"`
}

func (s *Stats) finish(outputRows int) {
	s.OutputRows = outputRows
	s.RowsRemoved = s.InputRows - outputRows
	if s.InputRows > 0 {
		s.RemovalPercentage = round2(100 * float64(s.RowsRemoved) / float64(s.InputRows))
	}
}

// Stage returns the statistics of the named stage.
func (s Stats) Stage(name string) (StageStats, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageStats{}, false
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("input_rows", s.InputRows),
		slog.Int("output_rows", s.OutputRows),
		slog.Int("rows_removed", s.RowsRemoved),
		slog.Float64("removal_pct", s.RemovalPercentage),
		slog.Int("duplicates_removed", s.DuplicatesRemoved),
	)
}

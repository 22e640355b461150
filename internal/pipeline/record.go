package pipeline

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/quality"
)

// Phase is a state of the run state machine.
type Phase string

const (
	PhaseExtract      Phase = "EXTRACT"
	PhasePreValidate  Phase = "PRE_VALIDATE"
	PhaseTransform    Phase = "TRANSFORM"
	PhasePostValidate Phase = "POST_VALIDATE"
	PhaseLoad         Phase = "LOAD"
	PhaseSummarize    Phase = "SUMMARIZE"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhaseExtract, PhasePreValidate, PhaseTransform, PhasePostValidate, PhaseLoad, PhaseSummarize}

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Gate names a quality checkpoint.
type Gate string

const (
	GatePreTransform  Gate = "pre_transform"
	GatePostTransform Gate = "post_transform"
)

// runIDLayout formats generated run ids, e.g. 20240501_093000.
const runIDLayout = "20060102_150405"

// NewRunID derives a run id from t.
func NewRunID(t time.Time) string { return t.Format(runIDLayout) }

// RunContext carries the identity of one run. It is passed by value to every
// phase and never changes after the run starts.
type RunContext struct {
	RunID     string
	StartedAt time.Time
	Logger    *slog.Logger
}

// TableLoad is a load result together with the row count read back from the
// table afterwards.
type TableLoad struct {
	domain.LoadResult
	VerifiedRows int64 `json:"verified_rows"`
}

// RunRecord is the auditable outcome of one run. Quality reports, cleaning
// statistics and loads hold whatever was produced before the run ended, so a
// failed run still reports the phases that completed.
type RunRecord struct {
	RunID           string          `json:"run_id"`
	Status          Status          `json:"status"`
	FailedPhase     Phase           `json:"failed_phase,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Duration        time.Duration   `json:"-"`
	DurationSeconds float64         `json:"duration_seconds"`
	PreQuality      *quality.Report `json:"pre_quality,omitempty"`
	PostQuality     *quality.Report `json:"post_quality,omitempty"`
	Cleaning        *cleaner.Stats  `json:"cleaning,omitempty"`
	Loads           []TableLoad     `json:"loads,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// RowsLoaded returns the rows loaded into table, or 0 if it was not loaded.
func (r RunRecord) RowsLoaded(table string) int {
	for _, l := range r.Loads {
		if l.Table == table {
			return l.RowsLoaded
		}
	}
	return 0
}

// finalize stamps the terminal status, end time and error. It is called once,
// by the summarize phase.
func (r *RunRecord) finalize(err error) {
	r.FinishedAt = domain.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.DurationSeconds = r.Duration.Seconds()
	r.Status = StatusSuccess
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// LogValue implements slog.LogValuer.
func (r RunRecord) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", r.RunID),
		slog.String("status", string(r.Status)),
		slog.Float64("duration_seconds", r.DurationSeconds),
	}
	if r.PreQuality != nil {
		attrs = append(attrs, slog.Float64("pre_quality_score", r.PreQuality.Score))
	}
	if r.PostQuality != nil {
		attrs = append(attrs, slog.Float64("post_quality_score", r.PostQuality.Score))
	}
	if r.Cleaning != nil {
		attrs = append(attrs, slog.Any("cleaning", *r.Cleaning))
	}
	for _, l := range r.Loads {
		attrs = append(attrs, slog.Int("rows_loaded_"+l.Table, l.RowsLoaded))
	}
	if r.Error != "" {
		attrs = append(attrs,
			slog.String("failed_phase", string(r.FailedPhase)),
			slog.String("error", r.Error),
		)
	}
	return slog.GroupValue(attrs...)
}

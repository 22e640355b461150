package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/observability"
	"github.com/couchcryptid/commerce-quality-etl/internal/quality"
)

// TransactionSource runs a read query against the source record store.
type TransactionSource interface {
	Extract(ctx context.Context, query string) (domain.Dataset, error)
}

// WeatherSource fetches one row per day for the given coordinates, covering
// the last days days.
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64, days int) (domain.Dataset, error)
}

// TargetStore writes datasets to tables and reads back their row counts.
type TargetStore interface {
	Load(ctx context.Context, ds domain.Dataset, table string, mode domain.LoadMode) (domain.LoadResult, error)
	VerifyLoad(ctx context.Context, table string) (int64, error)
}

// QualityGate decides whether a run may continue past a quality checkpoint.
// Returning an error fails the run at that gate.
type QualityGate func(rc RunContext, gate Gate, report quality.Report) error

// MinScoreGate returns a QualityGate that fails any gate scoring below floor.
func MinScoreGate(floor float64) QualityGate {
	return func(_ RunContext, gate Gate, report quality.Report) error {
		if report.Score < floor {
			return fmt.Errorf("%s quality score %.2f below floor %.2f", gate, report.Score, floor)
		}
		return nil
	}
}

// Orchestrator runs the extract, validate, transform, validate, load and
// summarize phases in order. It holds no per-run state, so independent runs
// may execute concurrently; two runs against the same target tables are not
// arbitrated here.
type Orchestrator struct {
	source   TransactionSource
	weather  WeatherSource
	target   TargetStore
	logger   *slog.Logger
	metrics  *observability.Metrics
	settings Settings

	sink            EventSink
	gate            QualityGate
	weatherCleaning *cleaner.Config

	ready   atomic.Bool
	lastRun atomic.Pointer[RunRecord]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// WithEventSink sends phase and summary events to sink in addition to the log.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithQualityGate makes quality scores binding. Without it scores are advisory.
func WithQualityGate(g QualityGate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// WithWeatherCleaning runs the cleaner over weather rows before mapping them.
// By default weather data is mapped as received.
func WithWeatherCleaning(cfg cleaner.Config) Option {
	return func(o *Orchestrator) { o.weatherCleaning = &cfg }
}

// New creates an Orchestrator over the given collaborators.
func New(source TransactionSource, weather WeatherSource, target TargetStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		weather:  weather,
		target:   target,
		logger:   logger,
		metrics:  metrics,
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(o)
	}
	sinks := MultiSink{LogSink{Logger: logger}}
	if o.sink != nil {
		sinks = append(sinks, o.sink)
	}
	o.sink = sinks
	return o
}

// Settings returns the settings runs use.
func (o *Orchestrator) Settings() Settings { return o.settings }

// CheckReadiness returns nil once a run has succeeded.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no pipeline run has succeeded yet")
	}
	return nil
}

// LastRun returns the record of the most recently finished run.
func (o *Orchestrator) LastRun() (RunRecord, bool) {
	r := o.lastRun.Load()
	if r == nil {
		return RunRecord{}, false
	}
	return *r, true
}

// Run executes one full run. An empty runID is replaced by one derived from
// the start time. The returned record is complete whether or not the run
// failed; on failure the error names the failed phase and wraps the cause, so
// errors.As still finds the typed domain error.
func (o *Orchestrator) Run(ctx context.Context, runID string) (RunRecord, error) {
	started := domain.Now()
	if runID == "" {
		runID = NewRunID(started)
	}
	rc := RunContext{
		RunID:     runID,
		StartedAt: started,
		Logger:    o.logger.With("run_id", runID),
	}

	o.metrics.RunInProgress.Inc()
	defer o.metrics.RunInProgress.Dec()

	rc.Logger.Info("pipeline run started")

	rec := RunRecord{RunID: runID, StartedAt: started}
	err := o.execute(ctx, rc, &rec)
	o.summarize(ctx, rc, &rec, err)
	return rec, err
}

// execute runs every phase before SUMMARIZE, stopping at the first failure.
func (o *Orchestrator) execute(ctx context.Context, rc RunContext, rec *RunRecord) error {
	var st runState
	steps := []struct {
		phase Phase
		run   func(context.Context, RunContext, *runState, *RunRecord) error
	}{
		{PhaseExtract, o.extract},
		{PhasePreValidate, o.preValidate},
		{PhaseTransform, o.transform},
		{PhasePostValidate, o.postValidate},
		{PhaseLoad, o.load},
	}
	for _, step := range steps {
		if err := o.runPhase(ctx, rc, step.phase, func() error { return step.run(ctx, rc, &st, rec) }); err != nil {
			rec.FailedPhase = step.phase
			return fmt.Errorf("%s phase: %w", step.phase, err)
		}
	}
	return nil
}

func (o *Orchestrator) runPhase(ctx context.Context, rc RunContext, phase Phase, fn func() error) error {
	start := domain.Now()
	o.publish(ctx, newEvent(rc, EventPhaseStarted, phase, start))

	err := fn()

	elapsed := domain.Since(start)
	o.metrics.PhaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())

	typ := EventPhaseCompleted
	if err != nil {
		typ = EventPhaseFailed
	}
	e := newEvent(rc, typ, phase, domain.Now())
	e.DurationSeconds = elapsed.Seconds()
	if err != nil {
		e.Error = err.Error()
	}
	o.publish(ctx, e)
	return err
}

// summarize finalizes the record, records metrics and emits the summary event.
// It runs after every run, successful or not.
func (o *Orchestrator) summarize(ctx context.Context, rc RunContext, rec *RunRecord, runErr error) {
	rec.finalize(runErr)

	o.metrics.RunsTotal.WithLabelValues(string(rec.Status)).Inc()
	o.metrics.RunDuration.Observe(rec.DurationSeconds)
	if rec.Status == StatusSuccess {
		o.metrics.LastSuccess.Set(float64(rec.FinishedAt.Unix()))
		o.ready.Store(true)
	}

	summary := *rec
	e := newEvent(rc, EventRunSummary, PhaseSummarize, rec.FinishedAt)
	e.DurationSeconds = rec.DurationSeconds
	e.Error = rec.Error
	e.Record = &summary
	o.publish(ctx, e)

	o.lastRun.Store(&summary)
}

func (o *Orchestrator) publish(ctx context.Context, e Event) {
	if err := o.sink.Publish(ctx, e); err != nil {
		o.logger.Warn("event publish failed", "run_id", e.RunID, "event", e.Type, "error", err)
		o.metrics.EventPublishErrors.WithLabelValues(sinkName(o.sink)).Inc()
	}
}

func sinkName(s EventSink) string {
	if n, ok := s.(NamedSink); ok {
		return n.Name()
	}
	return "unknown"
}

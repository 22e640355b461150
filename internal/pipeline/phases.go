package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/quality"
	"github.com/couchcryptid/commerce-quality-etl/internal/schema"
)

// runState carries datasets from one phase to the next within a single run.
type runState struct {
	transactions domain.Dataset
	weather      domain.Dataset
}

// extract reads transactions first and weather second; either failure aborts.
func (o *Orchestrator) extract(ctx context.Context, rc RunContext, st *runState, _ *RunRecord) error {
	tx, err := o.source.Extract(ctx, o.settings.SourceQuery)
	if err != nil {
		return asExtractionError("source query", err)
	}
	o.metrics.RowsExtracted.WithLabelValues("transactions").Add(float64(tx.Len()))
	rc.Logger.Info("extracted transactions", "rows", tx.Len(), "columns", tx.Columns())

	s := o.settings
	wx, err := o.weather.Fetch(ctx, s.Latitude, s.Longitude, s.WeatherDays)
	if err != nil {
		return asExtractionError("weather provider", err)
	}
	o.metrics.RowsExtracted.WithLabelValues("weather").Add(float64(wx.Len()))
	rc.Logger.Info("extracted weather", "rows", wx.Len(), "latitude", s.Latitude, "longitude", s.Longitude)

	st.transactions, st.weather = tx, wx
	return nil
}

func (o *Orchestrator) preValidate(_ context.Context, rc RunContext, st *runState, rec *RunRecord) error {
	report := o.validate(rc, GatePreTransform, st.transactions)
	rec.PreQuality = &report
	return o.checkGate(rc, GatePreTransform, report)
}

// transform cleans and maps transactions, then maps weather. Weather is cleaned
// only when weather cleaning is configured.
func (o *Orchestrator) transform(_ context.Context, rc RunContext, st *runState, rec *RunRecord) error {
	cl := cleaner.New(rc.Logger)

	cleaned, stats := cl.Clean(st.transactions, o.settings.Cleaning)
	rec.Cleaning = &stats
	o.metrics.RowsRemoved.Add(float64(stats.RowsRemoved))

	tx, err := schema.MapEcommerce(cleaned)
	if err != nil {
		return fmt.Errorf("map transactions: %w", err)
	}
	if err := schema.ValidateSchema(tx, schema.EcommerceColumns); err != nil {
		return fmt.Errorf("mapped transactions: %w", err)
	}

	wx := st.weather
	if o.weatherCleaning != nil {
		var wstats cleaner.Stats
		wx, wstats = cl.Clean(wx, *o.weatherCleaning)
		rc.Logger.Info("cleaned weather", "stats", wstats)
	}
	wx, err = schema.MapWeather(wx)
	if err != nil {
		return fmt.Errorf("map weather: %w", err)
	}

	rc.Logger.Info("transform complete", "transactions", tx.Len(), "weather", wx.Len())
	st.transactions, st.weather = tx, wx
	return nil
}

func (o *Orchestrator) postValidate(_ context.Context, rc RunContext, st *runState, rec *RunRecord) error {
	report := o.validate(rc, GatePostTransform, st.transactions)
	rec.PostQuality = &report
	return o.checkGate(rc, GatePostTransform, report)
}

// load replaces the transactions table, then the weather table, and reads
// each row count back. A count mismatch is logged, not fatal.
func (o *Orchestrator) load(ctx context.Context, rc RunContext, st *runState, rec *RunRecord) error {
	targets := []struct {
		table string
		ds    domain.Dataset
	}{
		{o.settings.TransactionsTable, st.transactions},
		{o.settings.WeatherTable, st.weather},
	}
	for _, t := range targets {
		res, err := o.target.Load(ctx, t.ds, t.table, domain.ModeReplace)
		if err != nil {
			return asLoadError(t.table, err)
		}
		o.metrics.RowsLoaded.WithLabelValues(t.table).Add(float64(res.RowsLoaded))
		rec.Loads = append(rec.Loads, TableLoad{LoadResult: res})

		count, err := o.target.VerifyLoad(ctx, t.table)
		if err != nil {
			return asLoadError(t.table, fmt.Errorf("verify load: %w", err))
		}
		rec.Loads[len(rec.Loads)-1].VerifiedRows = count

		if count != int64(res.RowsLoaded) {
			rc.Logger.Warn("loaded row count mismatch", "table", t.table, "rows_loaded", res.RowsLoaded, "rows_in_table", count)
			continue
		}
		rc.Logger.Info("table loaded", "load", res, "verified_rows", count)
	}
	return nil
}

func (o *Orchestrator) validate(rc RunContext, gate Gate, ds domain.Dataset) quality.Report {
	report := quality.NewValidator(rc.Logger).RunAllChecks(ds, GateConfig(ds, o.settings))
	o.metrics.QualityScore.WithLabelValues(string(gate)).Set(report.Score)
	rc.Logger.Info("quality score", "gate", gate, "score", report.Score, "failed_checks", len(report.Failures()))
	return report
}

func (o *Orchestrator) checkGate(rc RunContext, gate Gate, report quality.Report) error {
	if o.gate == nil {
		return nil
	}
	return o.gate(rc, gate, report)
}

func asExtractionError(source string, err error) error {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &domain.ExtractionError{Source: source, Err: err}
}

func asLoadError(table string, err error) error {
	var le *domain.LoadError
	if errors.As(err, &le) {
		return err
	}
	return &domain.LoadError{Table: table, Err: err}
}

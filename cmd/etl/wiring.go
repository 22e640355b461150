package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/commerce-quality-etl/internal/adapter/datadog"
	kafkaadapter "github.com/couchcryptid/commerce-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/commerce-quality-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/commerce-quality-etl/internal/adapter/prompush"
	"github.com/couchcryptid/commerce-quality-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/commerce-quality-etl/internal/cleaner"
	"github.com/couchcryptid/commerce-quality-etl/internal/config"
	"github.com/couchcryptid/commerce-quality-etl/internal/observability"
	"github.com/couchcryptid/commerce-quality-etl/internal/pipeline"
)

// weatherCacheEntries bounds the weather response cache; one entry per
// location and window.
const weatherCacheEntries = 16

type app struct {
	orchestrator *pipeline.Orchestrator
	closers      []func() error
	logger       *slog.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
	a.closers = nil
}

// build connects every collaborator named by cfg and assembles the orchestrator.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{logger: logger}

	source, err := openStore(ctx, cfg.Source, "source database", logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, source.Close)

	target, err := openStore(ctx, cfg.Target, "target database", logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, target.Close)

	weather := openmeteo.NewCachedFetcher(
		openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, logger, metrics),
		weatherCacheEntries, cfg.WeatherCacheTTL,
	)

	opts := []pipeline.Option{pipeline.WithSettings(settingsFrom(cfg))}

	sinks, closers, err := eventSinks(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	if len(sinks) > 0 {
		opts = append(opts, pipeline.WithEventSink(sinks))
	}
	if cfg.QualityMinScore > 0 {
		opts = append(opts, pipeline.WithQualityGate(pipeline.MinScoreGate(cfg.QualityMinScore)))
		logger.Info("quality gate enabled", "min_score", cfg.QualityMinScore)
	}
	if cfg.WeatherCleaning {
		opts = append(opts, pipeline.WithWeatherCleaning(cleaner.Config{}))
	}

	a.orchestrator = pipeline.New(source, weather, target, logger, metrics, opts...)
	return a, nil
}

func openStore(ctx context.Context, db config.DB, name string, logger *slog.Logger) (*sqlstore.Store, error) {
	dsn := db.DSN
	if dsn == "" {
		var err error
		dsn, err = sqlstore.BuildDSN(db.Driver, sqlstore.Endpoint{
			Host:      db.Host,
			Port:      db.Port,
			User:      db.User,
			Password:  db.Password,
			Name:      db.Name,
			SSLMode:   db.SSLMode,
			Warehouse: db.Warehouse,
			Role:      db.Role,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	s, err := sqlstore.Open(ctx, sqlstore.Options{Driver: db.Driver, DSN: dsn, Name: name}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

func settingsFrom(cfg *config.Config) pipeline.Settings {
	s := pipeline.DefaultSettings()
	s.SourceQuery = cfg.SourceQuery
	s.Latitude = cfg.WeatherLatitude
	s.Longitude = cfg.WeatherLongitude
	s.WeatherDays = cfg.WeatherPastDays
	s.NullThreshold = cfg.QualityNullThreshold
	s.MinRows = cfg.QualityMinRows
	s.MaxRows = cfg.QualityMaxRows
	return s
}

// eventSinks returns the optional sinks enabled in cfg.
func eventSinks(cfg *config.Config, logger *slog.Logger) (pipeline.MultiSink, []func() error, error) {
	var (
		sinks   pipeline.MultiSink
		closers []func() error
	)
	if len(cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewEventWriter(cfg.KafkaBrokers, cfg.KafkaEventsTopic, logger)
		sinks = append(sinks, w)
		closers = append(closers, w.Close)
		logger.Info("kafka event sink enabled", "topic", cfg.KafkaEventsTopic)
	}
	if cfg.PushgatewayURL != "" {
		s, err := prompush.NewSink(cfg.PushgatewayURL, cfg.PushgatewayJob, prometheus.DefaultGatherer)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		logger.Info("pushgateway sink enabled", "url", cfg.PushgatewayURL, "job", cfg.PushgatewayJob)
	}
	if cfg.DatadogEnabled {
		sinks = append(sinks, datadog.NewSink(datadog.ParseTagsCSV(cfg.DatadogTags)))
		logger.Info("datadog sink enabled")
	}
	return sinks, closers, nil
}

// Command etl runs the commerce quality pipeline. By default it performs one
// run and exits non-zero on failure. With -serve it stays up behind the HTTP
// server and runs on POST /runs.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/commerce-quality-etl/internal/adapter/http"
	"github.com/couchcryptid/commerce-quality-etl/internal/config"
	"github.com/couchcryptid/commerce-quality-etl/internal/observability"
)

func main() {
	serve := flag.Bool("serve", false, "keep running and trigger runs over HTTP")
	runID := flag.String("run-id", "", "run id for a one-shot run (default: derived from the start time)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	if !*serve {
		if _, err := app.orchestrator.Run(ctx, *runID); err != nil {
			// The summary has already been logged with the full record.
			app.close()
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, app.orchestrator, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown returns once triggered runs have finished, so the stores closed
	// by the deferred app.close are no longer in use unless the timeout hit.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

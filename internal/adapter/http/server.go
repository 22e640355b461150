package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/commerce-quality-etl/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner executes pipeline runs on demand.
type Runner interface {
	ReadinessChecker
	Run(ctx context.Context, runID string) (pipeline.RunRecord, error)
	LastRun() (pipeline.RunRecord, bool)
}

// Server exposes health, readiness and metrics endpoints, plus run triggering.
type Server struct {
	httpServer *http.Server
	runner     Runner
	runs       singleflight.Group
	logger     *slog.Logger

	// mu guards closing and the Add side of inflight.
	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, POST /runs
// and GET /runs/latest routes.
func NewServer(addr string, runner Runner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// POST /runs answers when the run finishes.
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		runner: runner,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(runner))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /runs", s.handleRun)
	mux.HandleFunc("GET /runs/latest", s.handleLatest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting runs, drains connections and then waits for
// triggered runs to finish, all within the given context deadline. Runs are
// detached from their requests, so they can outlive the connection drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for in-flight run: %w", ctx.Err()))
	}
}

// track registers a triggered run. It returns false once shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.inflight.Add(1)
	return true
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type runRequest struct {
	RunID string `json:"run_id"`
}

// handleRun starts a run, or joins the one already in flight. The run is not
// canceled when the caller disconnects. A failed run answers 500 with its
// record.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	if !s.track() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
		return
	}
	defer s.inflight.Done()

	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.runs.Do("run", func() (any, error) {
		return s.runner.Run(ctx, req.RunID)
	})
	rec, _ := v.(pipeline.RunRecord)
	if shared {
		w.Header().Set("X-Run-Shared", "true")
	}
	if err != nil {
		s.logger.Warn("triggered run failed", "run_id", rec.RunID, "error", err)
		writeJSON(w, http.StatusInternalServerError, rec)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	rec, ok := s.runner.LastRun()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

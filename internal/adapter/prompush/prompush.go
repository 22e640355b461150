// Package prompush pushes the service's Prometheus metrics to a Pushgateway
// when a run finishes. One-shot runs exit before a scrape could see them.
package prompush

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/couchcryptid/commerce-quality-etl/internal/pipeline"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "commerce_etl"

// Sink pushes every metric in a gatherer after each run summary.
// It implements pipeline.EventSink.
type Sink struct {
	mu     sync.Mutex
	pusher *push.Pusher
}

// NewSink creates a sink for the Pushgateway at gatewayURL.
func NewSink(gatewayURL, job string, g prometheus.Gatherer) (*Sink, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if job == "" {
		job = DefaultJob
	}
	return &Sink{pusher: push.New(gatewayURL, job).Gatherer(g)}, nil
}

// Publish pushes on run_summary events and ignores the rest. The push
// replaces the job's previous metric group.
func (s *Sink) Publish(ctx context.Context, e pipeline.Event) error {
	if e.Type != pipeline.EventRunSummary {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics for run %s: %w", e.RunID, err)
	}
	return nil
}

func (s *Sink) Name() string { return "pushgateway" }

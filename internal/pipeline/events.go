package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a run event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase_started"
	EventPhaseCompleted EventType = "phase_completed"
	EventPhaseFailed    EventType = "phase_failed"
	EventRunSummary     EventType = "run_summary"
)

// Event is a structured phase transition or run summary. Record is set only
// on run_summary events.
type Event struct {
	ID              string     `json:"id"`
	RunID           string     `json:"run_id"`
	Type            EventType  `json:"type"`
	Phase           Phase      `json:"phase,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Error           string     `json:"error,omitempty"`
	Record          *RunRecord `json:"record,omitempty"`
}

func newEvent(rc RunContext, typ EventType, phase Phase, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		RunID:     rc.RunID,
		Type:      typ,
		Phase:     phase,
		Timestamp: at,
	}
}

// EventSink receives run events. Sinks are write-only observers: an error from
// Publish is logged and never changes the outcome of a run.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

// NamedSink is implemented by sinks that label their errors in metrics.
type NamedSink interface {
	Name() string
}

// MultiSink fans every event out to each sink in order and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (MultiSink) Name() string { return "multi" }

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, e Event) error {
	switch e.Type {
	case EventRunSummary:
		level := slog.LevelInfo
		if e.Record != nil && e.Record.Status == StatusFailed {
			level = slog.LevelError
		}
		s.Logger.Log(ctx, level, "pipeline summary", "run_id", e.RunID, "summary", e.Record)
	case EventPhaseFailed:
		s.Logger.Error("phase failed", "run_id", e.RunID, "phase", e.Phase, "error", e.Error)
	case EventPhaseCompleted:
		s.Logger.Info("phase completed", "run_id", e.RunID, "phase", e.Phase, "duration_seconds", e.DurationSeconds)
	default:
		s.Logger.Debug("phase started", "run_id", e.RunID, "phase", e.Phase)
	}
	return nil
}

func (LogSink) Name() string { return "log" }

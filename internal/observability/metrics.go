package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "commerce_etl"

// Metrics holds the Prometheus collectors for pipeline runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: status={SUCCESS,FAILED}
	RunInProgress prometheus.Gauge         // 1 while a run executes
	RunDuration   prometheus.Histogram     // whole run, seconds
	PhaseDuration *prometheus.HistogramVec // labels: phase
	LastSuccess   prometheus.Gauge         // unix seconds of the last successful run

	// Data volume and quality.
	RowsExtracted *prometheus.CounterVec // labels: source={transactions,weather}
	RowsRemoved   prometheus.Counter
	RowsLoaded    *prometheus.CounterVec // labels: table
	QualityScore  *prometheus.GaugeVec   // labels: gate={pre_transform,post_transform}

	// Weather provider.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherAPIDuration prometheus.Histogram

	EventPublishErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Register adds every collector to reg. Used to push the same series to a
// Pushgateway from a dedicated registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunInProgress,
		m.RunDuration,
		m.PhaseDuration,
		m.LastSuccess,
		m.RowsExtracted,
		m.RowsRemoved,
		m.RowsLoaded,
		m.QualityScore,
		m.WeatherRequests,
		m.WeatherAPIDuration,
		m.EventPublishErrors,
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a pipeline run is executing, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Rows read from each source.",
		}, []string{"source"}),
		RowsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Transaction rows dropped by the cleaner.",
		}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows written to each target table.",
		}, []string{"table"}),
		QualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Most recent quality score (0-100) at each gate.",
		}, []string{"gate"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		EventPublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Run events that an event sink failed to accept.",
		}, []string{"sink"}),
	}
}

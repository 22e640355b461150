// Package datadog submits a gauge series per finished run to the Datadog
// metrics intake. Credentials and site come from the DD_API_KEY, DD_APP_KEY
// and DD_SITE environment variables read by the Datadog client.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/couchcryptid/commerce-quality-etl/internal/pipeline"
)

const metricPrefix = "commerce_etl."

// metricsSubmitter is the part of *datadogV2.MetricsApi the sink calls.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Sink implements pipeline.EventSink for run summaries.
type Sink struct {
	api  metricsSubmitter
	tags []string
}

// NewSink creates a sink that tags every series with tags.
func NewSink(tags []string) *Sink {
	client := dd.NewAPIClient(dd.NewConfiguration())
	return &Sink{
		api:  datadogV2.NewMetricsApi(client),
		tags: append([]string{"service:commerce-quality-etl"}, tags...),
	}
}

// Publish submits run_summary events and ignores the rest.
func (s *Sink) Publish(ctx context.Context, e pipeline.Event) error {
	if e.Type != pipeline.EventRunSummary || e.Record == nil {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: s.buildSeries(*e.Record)}
	_, _, err := s.api.SubmitMetrics(dd.NewDefaultContext(ctx), payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit for run %s: %w", e.RunID, err)
	}
	return nil
}

func (s *Sink) Name() string { return "datadog" }

func (s *Sink) buildSeries(rec pipeline.RunRecord) []datadogV2.MetricSeries {
	ts := rec.FinishedAt.Unix()
	base := withTags(s.tags, "status:"+strings.ToLower(string(rec.Status)))

	success := 0.0
	if rec.Status == pipeline.StatusSuccess {
		success = 1
	}
	series := []datadogV2.MetricSeries{
		gaugeSeries("run.duration_seconds", rec.DurationSeconds, base, ts),
		gaugeSeries("run.success", success, base, ts),
	}
	if rec.Status == pipeline.StatusFailed {
		series = append(series, gaugeSeries("run.failed", 1,
			withTags(base, "phase:"+strings.ToLower(string(rec.FailedPhase))), ts))
	}
	if rec.PreQuality != nil {
		series = append(series, gaugeSeries("quality.score", rec.PreQuality.Score,
			withTags(base, "gate:"+string(pipeline.GatePreTransform)), ts))
	}
	if rec.PostQuality != nil {
		series = append(series, gaugeSeries("quality.score", rec.PostQuality.Score,
			withTags(base, "gate:"+string(pipeline.GatePostTransform)), ts))
	}
	if rec.Cleaning != nil {
		series = append(series,
			gaugeSeries("cleaning.rows_removed", float64(rec.Cleaning.RowsRemoved), base, ts),
			gaugeSeries("cleaning.removal_percentage", rec.Cleaning.RemovalPercentage, base, ts),
		)
	}
	for _, l := range rec.Loads {
		series = append(series, gaugeSeries("rows.loaded", float64(l.RowsLoaded),
			withTags(base, "table:"+l.Table), ts))
	}
	return series
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metricPrefix + metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/observability"
	"github.com/couchcryptid/commerce-quality-etl/internal/schema"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const dailyFields = "temperature_2m_max,temperature_2m_min,precipitation_sum"

// Client fetches daily weather history from the Open-Meteo forecast API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Open-Meteo client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns one row per day for the last days days at lat, lon, with
// columns date, temp_max, temp_min and precipitation. Days the provider has
// no reading for are null.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, days int) (domain.Dataset, error) {
	start := time.Now()
	ds, err := c.fetch(ctx, lat, lon, days)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.Dataset{}, &domain.ExtractionError{Source: "open-meteo", Err: err}
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather fetched", "latitude", lat, "longitude", lon, "days", ds.Len())
	return ds, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, days int) (domain.Dataset, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
		"daily":     {dailyFields},
		"timezone":  {"auto"},
		"past_days": {strconv.Itoa(days)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Dataset{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var forecast response
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return domain.Dataset{}, fmt.Errorf("decode response: %w", err)
	}
	return forecast.Daily.dataset()
}

// Open-Meteo API response types.

type response struct {
	Daily daily `json:"daily"`
}

type daily struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	Precipitation []*float64 `json:"precipitation_sum"`
}

func (d daily) dataset() (domain.Dataset, error) {
	n := len(d.Time)
	if len(d.TempMax) != n || len(d.TempMin) != n || len(d.Precipitation) != n {
		return domain.Dataset{}, fmt.Errorf("daily series lengths differ: time=%d temperature_2m_max=%d temperature_2m_min=%d precipitation_sum=%d",
			n, len(d.TempMax), len(d.TempMin), len(d.Precipitation))
	}
	rows := make([][]domain.Value, n)
	for i := range rows {
		rows[i] = []domain.Value{
			domain.StringValue(d.Time[i]),
			reading(d.TempMax[i]),
			reading(d.TempMin[i]),
			reading(d.Precipitation[i]),
		}
	}
	return domain.NewDataset(schema.WeatherSourceColumns, rows)
}

func reading(f *float64) domain.Value {
	if f == nil {
		return domain.NullValue()
	}
	return domain.NumberValue(*f)
}

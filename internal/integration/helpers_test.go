//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/schema"
)

const (
	kafkaImage    = "confluentinc/confluent-local:7.5.0"
	postgresImage = "postgres:16-alpine"
)

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("commerce-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startPostgres runs a Postgres container and returns a URL DSN for it.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("warehouse"),
		tcpostgres.WithUsername("etl"),
		tcpostgres.WithPassword("etl"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// weatherServer serves a fixed three-day Open-Meteo forecast.
func weatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"daily": map[string]any{
				"time":               []string{"2024-01-01", "2024-01-02", "2024-01-03"},
				"temperature_2m_max": []any{8.1, 7.4, 9.0},
				"temperature_2m_min": []any{2.0, nil, 3.5},
				"precipitation_sum":  []any{0.4, 0.0, 1.2},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// rawTransactions returns n distinct source rows followed by one duplicate of
// the first row.
func rawTransactions(n int) domain.Dataset {
	records := make([]map[string]any, 0, n+1)
	for i := range n {
		records = append(records, map[string]any{
			"InvoiceNo":   strconv.Itoa(536365 + i),
			"InvoiceDate": "2024-01-02 10:00:00",
			"CustomerID":  strconv.Itoa(12000 + i%40),
			"StockCode":   "85123A",
			"Description": "  WHITE HANGING HEART T-LIGHT HOLDER ",
			"Quantity":    float64(1 + i%6),
			"UnitPrice":   2.55 + float64(i%3),
			"Country":     "United Kingdom",
		})
	}
	records = append(records, records[0])
	return domain.FromRecords(schema.EcommerceSourceColumns, records)
}

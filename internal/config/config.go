package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
)

// DB holds connection settings for one database. DSN, when set, wins over the
// discrete fields.
type DB struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// Snowflake only.
	Warehouse string
	Role      string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Source      DB
	Target      DB
	SourceQuery string

	WeatherBaseURL   string
	WeatherLatitude  float64
	WeatherLongitude float64
	WeatherPastDays  int
	WeatherTimeout   time.Duration
	WeatherCacheTTL  time.Duration
	WeatherCleaning  bool

	QualityNullThreshold float64
	QualityMinRows       int
	QualityMaxRows       int
	// QualityMinScore makes quality scores binding when positive.
	QualityMinScore float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers     []string
	KafkaEventsTopic string
	PushgatewayURL   string
	PushgatewayJob   string
	DatadogEnabled   bool
	DatadogTags      string
}

// Load reads a .env file from the working directory when one exists, then
// configuration from environment variables, applying defaults where unset.
// Every failure is a *domain.ConfigurationError naming the key.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.ConfigurationError{Key: ".env", Reason: "could not be parsed", Err: err}
	}

	p := &parser{}
	cfg := &Config{
		Source:      p.db("SOURCE", "postgres"),
		Target:      p.db("TARGET", "pgx"),
		SourceQuery: envOrDefault("SOURCE_QUERY", "SELECT * FROM raw_transactions"),

		WeatherBaseURL:   os.Getenv("WEATHER_BASE_URL"),
		WeatherLatitude:  p.float("WEATHER_LATITUDE", 51.5074),
		WeatherLongitude: p.float("WEATHER_LONGITUDE", -0.1278),
		WeatherPastDays:  p.int("WEATHER_PAST_DAYS", 30),
		WeatherTimeout:   p.duration("WEATHER_TIMEOUT", 10*time.Second),
		WeatherCacheTTL:  p.duration("WEATHER_CACHE_TTL", time.Hour),
		WeatherCleaning:  p.bool("WEATHER_CLEANING", false),

		QualityNullThreshold: p.float("QUALITY_NULL_THRESHOLD", 0.05),
		QualityMinRows:       p.int("QUALITY_MIN_ROWS", 100),
		QualityMaxRows:       p.int("QUALITY_MAX_ROWS", 0),
		QualityMinScore:      p.float("QUALITY_MIN_SCORE", 0),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: envOrDefault("KAFKA_EVENTS_TOPIC", "etl-run-events"),
		PushgatewayURL:   os.Getenv("PUSHGATEWAY_URL"),
		PushgatewayJob:   envOrDefault("PUSHGATEWAY_JOB", "commerce_etl"),
		DatadogEnabled:   p.bool("DATADOG_ENABLED", false),
		DatadogTags:      os.Getenv("DATADOG_TAGS"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Source.validate("SOURCE"); err != nil {
		return nil, err
	}
	if err := cfg.Target.validate("TARGET"); err != nil {
		return nil, err
	}
	if cfg.WeatherPastDays < 0 {
		return nil, invalid("WEATHER_PAST_DAYS", "must not be negative", nil)
	}
	if cfg.WeatherLatitude < -90 || cfg.WeatherLatitude > 90 {
		return nil, invalid("WEATHER_LATITUDE", "must be between -90 and 90", nil)
	}
	if cfg.WeatherLongitude < -180 || cfg.WeatherLongitude > 180 {
		return nil, invalid("WEATHER_LONGITUDE", "must be between -180 and 180", nil)
	}
	if cfg.QualityNullThreshold < 0 || cfg.QualityNullThreshold > 1 {
		return nil, invalid("QUALITY_NULL_THRESHOLD", "must be a fraction between 0 and 1", nil)
	}
	if cfg.QualityMinRows < 0 {
		return nil, invalid("QUALITY_MIN_ROWS", "must not be negative", nil)
	}
	if cfg.QualityMaxRows < 0 {
		return nil, invalid("QUALITY_MAX_ROWS", "must not be negative", nil)
	}
	if cfg.QualityMaxRows > 0 && cfg.QualityMaxRows < cfg.QualityMinRows {
		return nil, invalid("QUALITY_MAX_ROWS", "must not be below QUALITY_MIN_ROWS", nil)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaEventsTopic == "" {
		return nil, invalid("KAFKA_EVENTS_TOPIC", "is required when KAFKA_BROKERS is set", nil)
	}

	return cfg, nil
}

// validate checks that either a DSN or the discrete settings the driver needs
// are present.
func (d DB) validate(prefix string) error {
	if d.DSN != "" {
		return nil
	}
	required := []struct {
		key, value string
	}{
		{"HOST", d.Host},
		{"USER", d.User},
		{"PASSWORD", d.Password},
		{"NAME", d.Name},
	}
	if d.Driver == "sqlite" {
		required = required[3:]
	}
	for _, r := range required {
		if r.value == "" {
			return &domain.ConfigurationError{Key: prefix + "_DB_" + r.key, Reason: "is required"}
		}
	}
	return nil
}

func invalid(key, reason string, err error) error {
	return &domain.ConfigurationError{Key: key, Reason: reason, Err: err}
}

// parser reads typed settings and keeps the first error.
type parser struct {
	err error
}

func (p *parser) db(prefix, driver string) DB {
	return DB{
		Driver:    envOrDefault(prefix+"_DB_DRIVER", driver),
		DSN:       os.Getenv(prefix + "_DB_DSN"),
		Host:      os.Getenv(prefix + "_DB_HOST"),
		Port:      p.int(prefix+"_DB_PORT", 5432),
		User:      os.Getenv(prefix + "_DB_USER"),
		Password:  os.Getenv(prefix + "_DB_PASSWORD"),
		Name:      os.Getenv(prefix + "_DB_NAME"),
		SSLMode:   envOrDefault(prefix+"_DB_SSLMODE", "disable"),
		Warehouse: os.Getenv(prefix + "_DB_WAREHOUSE"),
		Role:      os.Getenv(prefix + "_DB_ROLE"),
	}
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = invalid(key, "is invalid", err)
	}
}

func (p *parser) int(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if d <= 0 {
		p.fail(key, errors.New("must be positive"))
		return def
	}
	return d
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

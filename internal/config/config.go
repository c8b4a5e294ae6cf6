package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
// The pipeline core only ever sees these resolved values.
type Config struct {
	BaseDir  string
	BaseURL  string
	Timezone string

	TargetDate string // YYYYMMDD; first (most recent) day to process
	Days       int    // number of days processed walking backwards

	DownloadConcurrency int
	ParseConcurrency    int
	MinPayloadSize      int
	FetchTimeout        time.Duration
	FetchAttempts       int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	// Retention of intermediate artifacts, applied after aggregation.
	KeepCompressed   bool
	KeepDecompressed bool
	KeepMinuteTables bool
	ZipDay           bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka snapshot publishing (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{
		BaseDir:  envOrDefault("BASE_DIR", "/data"),
		BaseURL:  strings.TrimRight(envOrDefault("BASE_URL", "https://tisvcloud.freeway.gov.tw/history/motc20/VD"), "/"),
		Timezone: envOrDefault("TIMEZONE", "Asia/Taipei"),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaTopic: envOrDefault("KAFKA_TOPIC", "vd-detector-snapshots"),
	}

	var err error
	if cfg.Days, err = parseIntInRange("DAYS", 1, 1, 366); err != nil {
		return nil, err
	}
	if cfg.DownloadConcurrency, err = parseIntInRange("DOWNLOAD_CONCURRENCY", 8, 1, 256); err != nil {
		return nil, err
	}
	if cfg.ParseConcurrency, err = parseIntInRange("PARSE_CONCURRENCY", 16, 1, 256); err != nil {
		return nil, err
	}
	if cfg.MinPayloadSize, err = parseIntInRange("MIN_PAYLOAD_SIZE", 1024, 0, 1<<30); err != nil {
		return nil, err
	}
	if cfg.FetchAttempts, err = parseIntInRange("FETCH_ATTEMPTS", 3, 1, 100); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parsePositiveDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = parsePositiveDuration("RETRY_BASE_DELAY", "200ms"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = parsePositiveDuration("RETRY_MAX_DELAY", "5s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return nil, errors.New("RETRY_MAX_DELAY must be >= RETRY_BASE_DELAY")
	}

	if cfg.KeepCompressed, err = parseBool("KEEP_COMPRESSED", false); err != nil {
		return nil, err
	}
	if cfg.KeepDecompressed, err = parseBool("KEEP_DECOMPRESSED", false); err != nil {
		return nil, err
	}
	if cfg.KeepMinuteTables, err = parseBool("KEEP_MINUTE_TABLES", false); err != nil {
		return nil, err
	}
	if cfg.ZipDay, err = parseBool("ZIP_DAY", true); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}

	if cfg.TargetDate, err = resolveTargetDate(cfg.Timezone); err != nil {
		return nil, err
	}

	if cfg.KafkaEnabled {
		cfg.KafkaBrokers = parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092"))
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	if cfg.BaseDir == "" {
		return nil, errors.New("BASE_DIR is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("BASE_URL is required")
	}

	return cfg, nil
}

// resolveTargetDate validates TARGET_DATE, defaulting to yesterday in tz
// because the current day's archive is still incomplete.
func resolveTargetDate(tz string) (string, error) {
	if v := os.Getenv("TARGET_DATE"); v != "" {
		if _, err := domain.NewDaySpec(v, tz); err != nil {
			return "", fmt.Errorf("invalid TARGET_DATE: %w", err)
		}
		return v, nil
	}
	day, err := domain.Yesterday(tz)
	if err != nil {
		return "", fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return day.Label(), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntInRange(key string, fallback, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	v := envOrDefault(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return b, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

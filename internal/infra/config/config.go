package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	MongoURI string
	MongoDB  string

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PricingCacheTTL time.Duration

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxWorkers      int
	OutboxMaxAttempts  int
	RetryBackoff       []time.Duration

	ReconcileInterval    time.Duration
	ReconcileHorizonDays int
	ReconcileConcurrency int
	ReconcileOrgs        []string
}

// Load reads .env when present, then parses configuration from the current
// environment. Environment variables win over .env values.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "staysync"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "staysync-channel-sync"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.PricingCacheTTL, err = parseDurationEnv("PRICING_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = parseIntEnv("OUTBOX_BATCH_SIZE", 64); err != nil {
		return Config{}, err
	}
	if cfg.OutboxWorkers, err = parseIntEnv("OUTBOX_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.OutboxMaxAttempts, err = parseIntEnv("OUTBOX_MAX_ATTEMPTS", 8); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileHorizonDays, err = parseIntEnv("RECONCILE_HORIZON_DAYS", 365); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileConcurrency, err = parseIntEnv("RECONCILE_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}

	for _, raw := range strings.Split(getEnv("RECONCILE_ORGS", ""), ",") {
		if org := strings.TrimSpace(raw); org != "" {
			cfg.ReconcileOrgs = append(cfg.ReconcileOrgs, org)
		}
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s,2m,10m")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("KAFKA_BROKERS is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %q", key, raw)
	}
	return n, nil
}

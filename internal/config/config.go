package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the climaterisk server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Upstream  UpstreamConfig
	Worker    WorkerConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// UpstreamConfig points at the climate analysis service.
type UpstreamConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// WorkerConfig controls the periodic job sync and retention sweep.
type WorkerConfig struct {
	Enabled      bool
	SyncInterval time.Duration
	SyncBatch    int
	PurgeEvery   time.Duration
	Retention    time.Duration
}

// KafkaConfig is optional; with no brokers, lifecycle events are not published.
type KafkaConfig struct {
	Brokers        []string
	JobEventsTopic string
}

type RateLimitConfig struct {
	PerMinute int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CLIMATERISK_PORT", 8080),
			Env:  envString("CLIMATERISK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Upstream: UpstreamConfig{
			BaseURL:          os.Getenv("UPSTREAM_BASE_URL"),
			APIKey:           os.Getenv("UPSTREAM_API_KEY"),
			Timeout:          envDuration("UPSTREAM_TIMEOUT", 30*time.Second),
			MaxResponseBytes: int64(envInt("UPSTREAM_MAX_RESPONSE_BYTES", 16<<20)),
		},
		Worker: WorkerConfig{
			Enabled:      envBool("WORKER_ENABLED", true),
			SyncInterval: envDuration("JOB_SYNC_INTERVAL", 30*time.Second),
			SyncBatch:    envInt("JOB_SYNC_BATCH", 100),
			PurgeEvery:   envDuration("JOB_PURGE_INTERVAL", 24*time.Hour),
			Retention:    envDuration("JOB_RETENTION", 2160*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:        envList("KAFKA_BROKERS"),
			JobEventsTopic: envString("KAFKA_JOB_EVENTS_TOPIC", "climaterisk.analysis-jobs"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return fmt.Errorf("UPSTREAM_BASE_URL must start with http:// or https://, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.MaxResponseBytes <= 0 {
		return fmt.Errorf("UPSTREAM_MAX_RESPONSE_BYTES must be positive, got %d", c.Upstream.MaxResponseBytes)
	}

	if c.Worker.Enabled {
		if c.Worker.SyncInterval < time.Second {
			return fmt.Errorf("JOB_SYNC_INTERVAL must be at least 1s, got %s", c.Worker.SyncInterval)
		}
		if c.Worker.Retention <= 0 {
			return fmt.Errorf("JOB_RETENTION must be positive, got %s", c.Worker.Retention)
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.JobEventsTopic == "" {
		return fmt.Errorf("KAFKA_JOB_EVENTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/shopsync/pkg/config"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all configuration for the storefront agent.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofEnabled   bool     `env:"PPROF_ENABLED" envDefault:"false"`

	// Local store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	Namespace    string `env:"STORE_NAMESPACE" envDefault:"storefront"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Remote wishlist (user service)
	UserServiceURL   string        `env:"USER_SERVICE_URL" envDefault:"http://localhost:8007"`
	RemoteTimeout    time.Duration `env:"REMOTE_TIMEOUT" envDefault:"10s"`
	RemoteMaxRetries int           `env:"REMOTE_MAX_RETRIES" envDefault:"2"`

	// Reconciliation
	ReconcileDelayMS    int     `env:"RECONCILE_DELAY_MS" envDefault:"1000"`
	ReconcileRatePerSec float64 `env:"RECONCILE_RATE_PER_SEC" envDefault:"10"`
	ReconcileBurst      int     `env:"RECONCILE_BURST" envDefault:"5"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres: got %q", c.StoreBackend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("STORE_NAMESPACE is required")
	}
	if c.UserServiceURL == "" {
		return fmt.Errorf("USER_SERVICE_URL is required")
	}
	if c.ReconcileDelayMS < 0 {
		return fmt.Errorf("RECONCILE_DELAY_MS must not be negative: %d", c.ReconcileDelayMS)
	}
	if c.ReconcileRatePerSec <= 0 {
		return fmt.Errorf("RECONCILE_RATE_PER_SEC must be positive: %v", c.ReconcileRatePerSec)
	}
	if c.ReconcileBurst < 1 {
		return fmt.Errorf("RECONCILE_BURST must be at least 1: %d", c.ReconcileBurst)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0: %v", c.OTELSampleRate)
	}
	return nil
}

// ReconcileDelay returns the debounce window for wishlist reconciliation.
func (c *Config) ReconcileDelay() time.Duration {
	return time.Duration(c.ReconcileDelayMS) * time.Millisecond
}

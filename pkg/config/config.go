// Package config loads the heartcore CLI configuration from a YAML file,
// .env files and environment variables.
package config

import (
	"time"

	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	"github.com/wehubfusion/Heartcore/pkg/content"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendRedis  = "redis"
	BackendBlob   = "azblob"
)

// Config is the root configuration.
type Config struct {
	Heartcore HeartcoreConfig `yaml:"heartcore"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Store     StoreConfig     `yaml:"store"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Log       LogConfig       `yaml:"log"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

// HeartcoreConfig holds the project credentials and API endpoints.
type HeartcoreConfig struct {
	ProjectAlias  string        `yaml:"project_alias" env:"HEARTCORE_PROJECT_ALIAS"`
	APIKey        string        `yaml:"api_key" env:"HEARTCORE_API_KEY"`
	Server        string        `yaml:"server" env:"HEARTCORE_SERVER"`
	ManagementURL string        `yaml:"management_url" env:"HEARTCORE_MANAGEMENT_URL"`
	DeliveryURL   string        `yaml:"delivery_url" env:"HEARTCORE_DELIVERY_URL"`
	GraphQLURL    string        `yaml:"graphql_url" env:"HEARTCORE_GRAPHQL_URL"`
	UseDelivery   bool          `yaml:"use_delivery" env:"HEARTCORE_USE_DELIVERY"`
	Timeout       time.Duration `yaml:"timeout" env:"HEARTCORE_TIMEOUT"`
}

// Credentials returns the configured project credentials.
func (c HeartcoreConfig) Credentials() content.ProjectCredentials {
	return content.ProjectCredentials{
		ProjectAlias: c.ProjectAlias,
		APIKey:       c.APIKey,
		Server:       c.Server,
	}
}

// SetDefaults applies default values for HeartcoreConfig.
func (c *HeartcoreConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// ThrottleConfig bounds the request rate against Heartcore.
type ThrottleConfig struct {
	Limit         int           `yaml:"limit" env:"HEARTCORE_THROTTLE_LIMIT"`
	Interval      time.Duration `yaml:"interval" env:"HEARTCORE_THROTTLE_INTERVAL"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"HEARTCORE_MAX_CONCURRENT"`
}

// SetDefaults fills unset values from the concurrency package's environment
// aware defaults.
func (c *ThrottleConfig) SetDefaults() {
	detected := concurrency.LoadConfig()
	if c.Limit == 0 {
		c.Limit = detected.Throttle.Limit
	}
	if c.Interval == 0 {
		c.Interval = detected.Throttle.Interval
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = detected.MaxConcurrent
	}
}

// Policy converts c to a throttle configuration.
func (c ThrottleConfig) Policy() concurrency.ThrottleConfig {
	return concurrency.ThrottleConfig{Limit: c.Limit, Interval: c.Interval}
}

// StoreConfig selects where location values are kept.
type StoreConfig struct {
	Backend string           `yaml:"backend" env:"HEARTCORE_STORE_BACKEND"`
	NATS    NATSStoreConfig  `yaml:"nats"`
	Redis   RedisStoreConfig `yaml:"redis"`
	Blob    BlobStoreConfig  `yaml:"azblob"`
}

// NATSStoreConfig configures the JetStream key-value backend.
type NATSStoreConfig struct {
	URL      string `yaml:"url" env:"NATS_URL"`
	Bucket   string `yaml:"bucket" env:"NATS_BUCKET"`
	Token    string `yaml:"token" env:"NATS_TOKEN"`
	Username string `yaml:"username" env:"NATS_USERNAME"`
	Password string `yaml:"password" env:"NATS_PASSWORD"`
}

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	Prefix   string        `yaml:"prefix" env:"REDIS_PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
}

// BlobStoreConfig configures the Azure Blob Storage backend.
type BlobStoreConfig struct {
	ConnectionString string `yaml:"connection_string" env:"AZURE_STORAGE_CONNECTION_STRING"`
	Container        string `yaml:"container" env:"AZURE_STORAGE_CONTAINER"`
	Prefix           string `yaml:"prefix" env:"AZURE_STORAGE_PREFIX"`
}

// SetDefaults applies default values for StoreConfig.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = "HEARTCORE_LOCATIONS"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "heartcore:location:"
	}
	if c.Blob.Container == "" {
		c.Blob.Container = "heartcore"
	}
	if c.Blob.Prefix == "" {
		c.Blob.Prefix = "locations"
	}
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO"`
	Environment string  `yaml:"environment" env:"ENVIRONMENT"`
}

// SetDefaults applies default values for TracingConfig.
func (c *TracingConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "127.0.0.1:4318"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1.0
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// SetDefaults applies default values for LogConfig.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn" env:"SENTRY_DSN"`
	Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT"`
}

// Enabled reports whether a DSN is configured.
func (c SentryConfig) Enabled() bool {
	return c.DSN != ""
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Heartcore.SetDefaults()
	c.Throttle.SetDefaults()
	c.Store.SetDefaults()
	c.Tracing.SetDefaults()
	c.Log.SetDefaults()
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = c.Tracing.Environment
	}
}

// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() builds a Config holding every default.
//   - Load layers dotenv, YAML and environment values on top of New().
//   - Keys are flat and snake_case so FOOTPRINT_<KEY> maps 1:1 onto them.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage drivers accepted by storage_driver.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the journey store: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`
	// StorageDSN is the gorm DSN for sqlite and postgres.
	StorageDSN string `koanf:"storage_dsn"`

	// DefaultPageSize is used when a query omits the page size.
	DefaultPageSize int `koanf:"default_page_size"`
	// MaxPageSize caps the page size of journey queries.
	MaxPageSize int `koanf:"max_page_size"`

	// DedupeSize bounds the remembered client action ids.
	DedupeSize int `koanf:"dedupe_size"`

	// AllowedOrigins lists CORS origins, comma separated. "*" allows any.
	AllowedOrigins string `koanf:"allowed_origins"`

	// RequestTimeoutMS bounds storage work per HTTP request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// IngestRateLimit caps ingestion requests per client IP per minute.
	// Zero disables the limit.
	IngestRateLimit int `koanf:"ingest_rate_limit"`

	// RedisAddr enables cross-instance journey bus fan-out when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisChannel  string `koanf:"redis_channel"`

	// ArchiveEnabled turns on the ClickHouse raw telemetry archive.
	ArchiveEnabled     bool   `koanf:"archive_enabled"`
	ClickHouseAddr     string `koanf:"clickhouse_addr"`
	ClickHouseDatabase string `koanf:"clickhouse_database"`
	ClickHouseUsername string `koanf:"clickhouse_username"`
	ClickHousePassword string `koanf:"clickhouse_password"`
	ArchiveQueueSize   int    `koanf:"archive_queue_size"`
	ArchiveWorkers     int    `koanf:"archive_workers"`
	ArchiveBatchSize   int    `koanf:"archive_batch_size"`
	ArchiveFlushMS     int    `koanf:"archive_flush_ms"`

	// TracingEnabled installs the OpenTelemetry tracer provider.
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		StorageDriver:      StorageMemory,
		DefaultPageSize:    20,
		MaxPageSize:        100,
		DedupeSize:         100_000,
		AllowedOrigins:     "*",
		RequestTimeoutMS:   10_000,
		RedisChannel:       "footprint.journeys",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUsername: "default",
		ArchiveQueueSize:   10_000,
		ArchiveWorkers:     2,
		ArchiveBatchSize:   500,
		ArchiveFlushMS:     2_000,
	}
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ArchiveFlushInterval returns ArchiveFlushMS as a duration.
func (c *Config) ArchiveFlushInterval() time.Duration {
	return time.Duration(c.ArchiveFlushMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StorageDriver {
	case StorageMemory:
	case StorageSQLite, StoragePostgres:
		if c.StorageDSN == "" {
			return fmt.Errorf("%w: storage_dsn is required for %s", ErrInvalidConfig, c.StorageDriver)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrStorageDriver, c.StorageDriver)
	}
	if c.IngestRateLimit < 0 {
		return fmt.Errorf("%w: ingest_rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("%w: page sizes must be positive", ErrInvalidConfig)
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("%w: default_page_size exceeds max_page_size", ErrInvalidConfig)
	}
	if c.ArchiveEnabled && (c.ArchiveWorkers <= 0 || c.ArchiveBatchSize <= 0 || c.ArchiveQueueSize <= 0) {
		return fmt.Errorf("%w: archive workers, batch and queue sizes must be positive", ErrInvalidConfig)
	}
	return nil
}

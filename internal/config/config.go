package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/catalog-search/pkg/config"
)

// Backend names accepted by CatalogBackend and CacheBackend.
const (
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
	BackendRedis         = "redis"
	BackendMemory        = "memory"
)

// Config holds all configuration for the catalog search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SEARCH_HTTP_PORT" envDefault:"8010"`

	// Catalog read model backend (postgres, elasticsearch, or memory)
	CatalogBackend string `env:"CATALOG_BACKEND" envDefault:"postgres"`

	// Postgres
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"catalog_search"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Result cache backend (redis or memory)
	CacheBackend  string `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Elasticsearch (used when CatalogBackend is elasticsearch)
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_items"`

	// Kafka
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaSyncEnabled bool     `env:"KAFKA_SYNC_ENABLED" envDefault:"true"`

	// Catalog service URL for reindex fetching
	CatalogServiceURL string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8080"`

	// Cache TTLs
	SearchCacheTTL  time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"5m"`
	SuggestCacheTTL time.Duration `env:"SUGGEST_CACHE_TTL" envDefault:"60s"`
	SynonymCacheTTL time.Duration `env:"SYNONYM_CACHE_TTL" envDefault:"60s"`

	// History retention
	HistoryRetentionDays int           `env:"HISTORY_RETENTION_DAYS" envDefault:"90"`
	RetentionInterval    time.Duration `env:"RETENTION_INTERVAL" envDefault:"24h"`

	// Observability
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	TracingEnabled     bool          `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint    string        `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate  float64       `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
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
	switch c.CatalogBackend {
	case BackendPostgres, BackendElasticsearch, BackendMemory:
	default:
		return fmt.Errorf("invalid catalog backend: %q", c.CatalogBackend)
	}
	switch c.CacheBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid cache backend: %q", c.CacheBackend)
	}
	if c.HistoryRetentionDays < 1 {
		return fmt.Errorf("invalid history retention: %d days", c.HistoryRetentionDays)
	}
	return nil
}

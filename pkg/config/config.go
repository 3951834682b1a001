package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Elasticsearch ElasticsearchConfig
	Indexing      IndexingConfig
	Reindex       ReindexConfig
	Analytics     AnalyticsConfig
	OTEL          OTELConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ElasticsearchConfig holds search backend configuration
type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
}

// IndexingConfig holds bulk indexing and full-sync configuration
type IndexingConfig struct {
	ChunkSize    int
	SyncPageSize int
}

// ReindexConfig holds zero-downtime reindex configuration
type ReindexConfig struct {
	PollInterval time.Duration
	Ceiling      time.Duration
}

// AnalyticsConfig holds alerting and recommendation thresholds
type AnalyticsConfig struct {
	MinCTR          float64
	MaxZeroRatio    float64
	SlowQueryMs     float64
	AlertLatencyMs  float64
	AlertErrorRate  float64
	NightlySchedule string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "coursesearch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Indexing: IndexingConfig{
			ChunkSize:    getEnvAsInt("INDEXING_CHUNK_SIZE", 100),
			SyncPageSize: getEnvAsInt("INDEXING_SYNC_PAGE_SIZE", 500),
		},
		Reindex: ReindexConfig{
			PollInterval: getEnvAsDuration("REINDEX_POLL_INTERVAL", 5*time.Second),
			Ceiling:      getEnvAsDuration("REINDEX_CEILING", 30*time.Minute),
		},
		Analytics: AnalyticsConfig{
			MinCTR:          getEnvAsFloat("ANALYTICS_MIN_CTR", 0.3),
			MaxZeroRatio:    getEnvAsFloat("ANALYTICS_MAX_ZERO_RATIO", 0.2),
			SlowQueryMs:     getEnvAsFloat("ANALYTICS_SLOW_QUERY_MS", 500),
			AlertLatencyMs:  getEnvAsFloat("ANALYTICS_ALERT_LATENCY_MS", 1000),
			AlertErrorRate:  getEnvAsFloat("ANALYTICS_ALERT_ERROR_RATE", 0.05),
			NightlySchedule: getEnv("ANALYTICS_NIGHTLY_SCHEDULE", "0 2 * * *"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "coursesearch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

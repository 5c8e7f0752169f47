package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Vector-Analytics application.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Cache      CacheConfig
	Realtime   RealtimeConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the metric store backend.
type StoreConfig struct {
	// Driver is one of "postgres", "clickhouse", "memory".
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the columnar store used for high-volume tenants.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled bool
	// Keys maps API key -> tenant ID, parsed from "key:tenant" pairs.
	Keys      map[string]string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// CacheConfig configures the aggregate cache.
type CacheConfig struct {
	// TTL is the default lifetime of a cached aggregate.
	TTL time.Duration
}

// RealtimeConfig configures the fan-out hub.
type RealtimeConfig struct {
	// Channel is the shared broadcast channel name.
	Channel string
	// DefaultInterval is used when a client does not request one.
	DefaultInterval time.Duration
	// MinInterval and MaxInterval bound client-supplied update intervals.
	MinInterval time.Duration
	MaxInterval time.Duration
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("VECTOR_ANALYTICS_HTTP_ADDR", ":8080"),
			Env:             getEnv("VECTOR_ANALYTICS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VECTOR_ANALYTICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("VECTOR_ANALYTICS_STORE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("VECTOR_ANALYTICS_DB_HOST", "localhost"),
			Port:     getIntEnv("VECTOR_ANALYTICS_DB_PORT", 5432),
			User:     getEnv("VECTOR_ANALYTICS_DB_USER", "analytics"),
			Password: getEnv("VECTOR_ANALYTICS_DB_PASSWORD", "analytics_secret"),
			DBName:   getEnv("VECTOR_ANALYTICS_DB_NAME", "analytics"),
			SSLMode:  getEnv("VECTOR_ANALYTICS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VECTOR_ANALYTICS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("VECTOR_ANALYTICS_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("VECTOR_ANALYTICS_CH_ADDR", "localhost:9000"),
			Database: getEnv("VECTOR_ANALYTICS_CH_DATABASE", "analytics"),
			User:     getEnv("VECTOR_ANALYTICS_CH_USER", "default"),
			Password: getEnv("VECTOR_ANALYTICS_CH_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("VECTOR_ANALYTICS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_ANALYTICS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_ANALYTICS_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VECTOR_ANALYTICS_AUTH_ENABLED", true),
			Keys:      getKeyMapEnv("VECTOR_ANALYTICS_API_KEYS"),
			SkipPaths: getSliceEnv("VECTOR_ANALYTICS_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("VECTOR_ANALYTICS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("VECTOR_ANALYTICS_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("VECTOR_ANALYTICS_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_ANALYTICS_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_ANALYTICS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("VECTOR_ANALYTICS_METRICS_ENABLED", true),
			Path:    getEnv("VECTOR_ANALYTICS_METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			TTL: getDurationEnv("VECTOR_ANALYTICS_CACHE_TTL", 5*time.Minute),
		},
		Realtime: RealtimeConfig{
			Channel:         getEnv("VECTOR_ANALYTICS_BROADCAST_CHANNEL", "analytics:events"),
			DefaultInterval: getDurationEnv("VECTOR_ANALYTICS_RT_DEFAULT_INTERVAL", 30*time.Second),
			MinInterval:     getDurationEnv("VECTOR_ANALYTICS_RT_MIN_INTERVAL", 1*time.Second),
			MaxInterval:     getDurationEnv("VECTOR_ANALYTICS_RT_MAX_INTERVAL", 5*time.Minute),
			WriteTimeout:    getDurationEnv("VECTOR_ANALYTICS_RT_WRITE_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("VECTOR_ANALYTICS_API_KEYS is required when auth is enabled")
	}
	switch c.Store.Driver {
	case "postgres", "clickhouse", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Realtime.MinInterval <= 0 || c.Realtime.MaxInterval < c.Realtime.MinInterval {
		return fmt.Errorf("invalid realtime interval bounds")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

// getKeyMapEnv parses "apikey:tenant" pairs separated by commas.
func getKeyMapEnv(key string) map[string]string {
	out := make(map[string]string)
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return out
	}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, tenant, found := strings.Cut(pair, ":")
		if !found || k == "" || tenant == "" {
			continue
		}
		out[k] = tenant
	}
	return out
}

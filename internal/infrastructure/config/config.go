package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides (RETAILOPS_BARCODE_PREFIX)
const EnvPrefix = "RETAILOPS"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Barcode   BarcodeConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int  // in minutes
	ConnMaxIdleTime int  // in minutes
	AutoMigrate     bool // apply the embedded schema on server start
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // deadline of each API request context
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to export traces and metrics
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // plaintext gRPC, development only
	MetricsInterval   time.Duration
	DBTraceEnabled    bool // otelgorm spans for SQL
	DBLogFullSQL      bool // include query variables in spans, never in production
}

// BarcodeConfig holds barcode generation settings
type BarcodeConfig struct {
	Prefix          string
	Format          string // structured, checksum_numeric
	NamespaceCode   string // 3-digit namespace of checksum-numeric codes
	CounterBase     int64  // seed value of every counter on first start
	CounterBackend  string // database, redis
	CounterStrategy string // cas, rmw (database backend only)
	RedisFallback   bool   // fall back to the database backend when Redis is unreachable
	RedisKeyPrefix  string
	MaxRetries      int // attempts per generation, including the first
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	BulkConcurrency int
	BulkMaxItems    int
}

// Counter backends
const (
	CounterBackendDatabase = "database"
	CounterBackendRedis    = "redis"
)

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with RETAILOPS_ prefix (e.g., RETAILOPS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted after the fact, so they get viper defaults
	v.SetDefault("barcode.redis_fallback", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
		Barcode: BarcodeConfig{
			Prefix:          v.GetString("barcode.prefix"),
			Format:          v.GetString("barcode.format"),
			NamespaceCode:   v.GetString("barcode.namespace_code"),
			CounterBase:     v.GetInt64("barcode.counter_base"),
			CounterBackend:  v.GetString("barcode.counter_backend"),
			CounterStrategy: v.GetString("barcode.counter_strategy"),
			RedisFallback:   v.GetBool("barcode.redis_fallback"),
			RedisKeyPrefix:  v.GetString("barcode.redis_key_prefix"),
			MaxRetries:      v.GetInt("barcode.max_retries"),
			BackoffInitial:  v.GetDuration("barcode.backoff_initial"),
			BackoffMax:      v.GetDuration("barcode.backoff_max"),
			BulkConcurrency: v.GetInt("barcode.bulk_concurrency"),
			BulkMaxItems:    v.GetInt("barcode.bulk_max_items"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "retailops-barcode"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "retailops"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}

	if cfg.Barcode.Prefix == "" {
		cfg.Barcode.Prefix = barcode.DefaultPrefix
	}
	cfg.Barcode.Prefix = strings.ToUpper(cfg.Barcode.Prefix)
	if cfg.Barcode.Format == "" {
		cfg.Barcode.Format = string(barcode.FormatStructured)
	}
	if cfg.Barcode.NamespaceCode == "" {
		cfg.Barcode.NamespaceCode = barcode.DefaultNamespaceCode
	}
	if cfg.Barcode.CounterBase == 0 {
		cfg.Barcode.CounterBase = barcode.DefaultCounterBase
	}
	if cfg.Barcode.CounterBackend == "" {
		cfg.Barcode.CounterBackend = CounterBackendDatabase
	}
	if cfg.Barcode.CounterStrategy == "" {
		cfg.Barcode.CounterStrategy = "cas"
	}
	if cfg.Barcode.RedisKeyPrefix == "" {
		cfg.Barcode.RedisKeyPrefix = "barcode:counter:"
	}
	if cfg.Barcode.MaxRetries == 0 {
		cfg.Barcode.MaxRetries = 5
	}
	if cfg.Barcode.BackoffInitial == 0 {
		cfg.Barcode.BackoffInitial = 10 * time.Millisecond
	}
	if cfg.Barcode.BackoffMax == 0 {
		cfg.Barcode.BackoffMax = 200 * time.Millisecond
	}
	if cfg.Barcode.BulkConcurrency == 0 {
		cfg.Barcode.BulkConcurrency = 4
	}
	if cfg.Barcode.BulkMaxItems == 0 {
		cfg.Barcode.BulkMaxItems = 500
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return c.Barcode.validate()
}

func (b *BarcodeConfig) validate() error {
	if err := barcode.ValidatePrefix(b.Prefix); err != nil {
		return fmt.Errorf("barcode.prefix %q: %w", b.Prefix, err)
	}
	if _, err := barcode.ParseFormat(b.Format); err != nil {
		return fmt.Errorf("barcode.format %q: %w", b.Format, err)
	}
	if _, err := barcode.NewEncoder(b.Prefix, b.NamespaceCode); err != nil {
		return fmt.Errorf("barcode.namespace_code %q: %w", b.NamespaceCode, err)
	}
	if b.CounterBase < 0 || b.CounterBase > barcode.MaxCounter {
		return fmt.Errorf("barcode.counter_base must be between 0 and %d", barcode.MaxCounter)
	}
	switch b.CounterBackend {
	case CounterBackendDatabase, CounterBackendRedis:
	default:
		return fmt.Errorf("barcode.counter_backend must be 'database' or 'redis', got %q", b.CounterBackend)
	}
	switch b.CounterStrategy {
	case "cas", "rmw":
	default:
		return fmt.Errorf("barcode.counter_strategy must be 'cas' or 'rmw', got %q", b.CounterStrategy)
	}
	if b.MaxRetries < 1 {
		return fmt.Errorf("barcode.max_retries must be at least 1")
	}
	if b.BackoffInitial < 0 || b.BackoffMax < b.BackoffInitial {
		return fmt.Errorf("barcode.backoff_max (%s) must be >= barcode.backoff_initial (%s)", b.BackoffMax, b.BackoffInitial)
	}
	if b.BulkConcurrency < 1 {
		return fmt.Errorf("barcode.bulk_concurrency must be at least 1")
	}
	if b.BulkMaxItems < 1 {
		return fmt.Errorf("barcode.bulk_max_items must be at least 1")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

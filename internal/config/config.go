package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/narwhalmedia/deadarchive/pkg/config"
)

// ServiceName is used for the env prefix and default config file names.
const ServiceName = "deadarchive"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logger    LoggerConfig    `koanf:"logger"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Cache     CacheConfig     `koanf:"cache"`
	Ratings   RatingsConfig   `koanf:"ratings"`
	Events    EventsConfig    `koanf:"events"`
	Storage   StorageConfig   `koanf:"storage"`
	Downloads DownloadsConfig `koanf:"downloads"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Environment  string        `koanf:"environment"`
	HTTPPort     int           `koanf:"http_port"`
	GRPCPort     int           `koanf:"grpc_port"`
	ShutdownTime time.Duration `koanf:"shutdown_time"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string        `koanf:"driver"` // sqlite, postgres, mysql
	Path         string        `koanf:"path"`   // sqlite only
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	User         string        `koanf:"user"`
	Password     string        `koanf:"password"`
	Database     string        `koanf:"database"`
	SSLMode      string        `koanf:"ssl_mode"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	MaxLifetime  time.Duration `koanf:"max_lifetime"`
	Debug        bool          `koanf:"debug"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`      // json, console
	OutputPath string `koanf:"output_path"` // stdout or a file path rotated by lumberjack
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// CatalogConfig holds remote catalog client configuration
type CatalogConfig struct {
	BaseURL            string        `koanf:"base_url"`
	Collection         string        `koanf:"collection"`
	Timeout            time.Duration `koanf:"timeout"`
	RequestsPerSecond  float64       `koanf:"requests_per_second"`
	Burst              int           `koanf:"burst"`
	RetryAttempts      int           `koanf:"retry_attempts"`
	RetryInitial       time.Duration `koanf:"retry_initial"`
	RetryMultiplier    float64       `koanf:"retry_multiplier"`
	PageSize           int           `koanf:"page_size"`
	HydrateConcurrency int           `koanf:"hydrate_concurrency"`
	UserAgent          string        `koanf:"user_agent"`
}

// CacheConfig holds freshness and negative-cache configuration
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	NegativeTTL     time.Duration `koanf:"negative_ttl"`
	SearchLimit     int           `koanf:"search_limit"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	Backend         string        `koanf:"backend"` // memory, redis
	RedisAddr       string        `koanf:"redis_addr"`
	RedisPassword   string        `koanf:"redis_password"`
	RedisDB         int           `koanf:"redis_db"`
}

// RatingsConfig holds rating aggregation parameters
type RatingsConfig struct {
	ConfidenceThreshold int     `koanf:"confidence_threshold"`
	TopMinConfidence    float64 `koanf:"top_min_confidence"`
	TopLimit            int     `koanf:"top_limit"`
}

// EventsConfig holds lifecycle event publishing configuration
type EventsConfig struct {
	Backend      string   `koanf:"backend"` // none, nats, kafka
	NATSURL      string   `koanf:"nats_url"`
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// StorageConfig holds export storage configuration
type StorageConfig struct {
	Backend  string `koanf:"backend"` // local, s3
	LocalDir string `koanf:"local_dir"`
	S3Bucket string `koanf:"s3_bucket"`
	S3Region string `koanf:"s3_region"`
	S3Prefix string `koanf:"s3_prefix"`
}

// DownloadsConfig holds download worker configuration
type DownloadsConfig struct {
	Dir         string `koanf:"dir"`
	Concurrency int    `koanf:"concurrency"`
	AutoStart   bool   `koanf:"auto_start"`
	TagFiles    bool   `koanf:"tag_files"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Environment:  "development",
			HTTPPort:     pkgconfig.DefaultHTTPPort,
			GRPCPort:     pkgconfig.DefaultGRPCPort,
			ShutdownTime: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         pkgconfig.DefaultSQLitePath,
			Host:         "localhost",
			Port:         5432,
			User:         "deadarchive",
			Database:     "deadarchive",
			SSLMode:      "disable",
			MaxOpenConns: pkgconfig.DefaultMaxConnections,
			MaxIdleConns: pkgconfig.DefaultMaxIdleConns,
			MaxLifetime:  pkgconfig.DefaultMaxLifetime,
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Catalog: CatalogConfig{
			BaseURL:            pkgconfig.DefaultCatalogBaseURL,
			Collection:         pkgconfig.DefaultCatalogCollection,
			Timeout:            pkgconfig.DefaultRequestTimeout,
			RequestsPerSecond:  pkgconfig.DefaultRequestsPerSecond,
			Burst:              4,
			RetryAttempts:      pkgconfig.DefaultRetryAttempts,
			RetryInitial:       pkgconfig.DefaultRetryInitial,
			RetryMultiplier:    pkgconfig.DefaultRetryMultiplier,
			PageSize:           100,
			HydrateConcurrency: 4,
			UserAgent:          "deadarchive/1.0",
		},
		Cache: CacheConfig{
			TTL:             pkgconfig.DefaultCacheTTL,
			NegativeTTL:     pkgconfig.DefaultNegativeTTL,
			SearchLimit:     pkgconfig.DefaultSearchLimit,
			CleanupInterval: pkgconfig.DefaultCleanupInterval,
			Backend:         "memory",
			RedisAddr:       "localhost:6379",
		},
		Ratings: RatingsConfig{
			ConfidenceThreshold: 10,
			TopMinConfidence:    0.7,
			TopLimit:            100,
		},
		Events: EventsConfig{
			Backend:    "none",
			NATSURL:    "nats://localhost:4222",
			KafkaTopic: "deadarchive.events",
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "exports",
		},
		Downloads: DownloadsConfig{
			Dir:         pkgconfig.DefaultDownloadDir,
			Concurrency: pkgconfig.DefaultDownloadConcurrency,
			AutoStart:   true,
			TagFiles:    true,
		},
	}
}

// Load builds a Config from defaults, config files, .env and DEADARCHIVE_ env vars.
func Load(paths ...string) (*Config, error) {
	cfg := Defaults()
	if err := pkgconfig.NewManager(ServiceName, paths...).LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the rest of the app cannot handle
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Events.Backend {
	case "none", "nats", "kafka":
	default:
		return fmt.Errorf("unsupported events backend %q", c.Events.Backend)
	}
	if c.Events.Backend == "kafka" && len(c.Events.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka events backend requires at least one broker")
	}
	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("s3 storage backend requires a bucket")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Catalog.RetryAttempts < 1 {
		return fmt.Errorf("catalog retry_attempts must be at least 1")
	}
	if c.Ratings.ConfidenceThreshold < 1 {
		return fmt.Errorf("ratings confidence_threshold must be at least 1")
	}
	if c.Downloads.Concurrency < 1 {
		return fmt.Errorf("downloads concurrency must be at least 1")
	}
	return nil
}

// DSN returns the driver-specific data source name
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Database,
		)
	default:
		return c.Path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
}

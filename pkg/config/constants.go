package config

import "time"

const (
	// Server ports.
	DefaultHTTPPort = 8080
	DefaultGRPCPort = 9090

	// Database defaults.
	DefaultSQLitePath     = "deadarchive.db"
	DefaultMaxConnections = 10
	DefaultMaxIdleConns   = 2
	DefaultMaxLifetime    = time.Hour

	// Remote catalog defaults.
	DefaultCatalogBaseURL    = "https://archive.org"
	DefaultCatalogCollection = "GratefulDead"
	DefaultRequestTimeout    = 10 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultRetryAttempts     = 5
	DefaultRetryInitial      = time.Second
	DefaultRetryMultiplier   = 1.5

	// Cache defaults.
	DefaultCacheTTL        = 24 * time.Hour
	DefaultNegativeTTL     = 10 * time.Minute
	DefaultSearchLimit     = 100
	DefaultCleanupInterval = time.Hour

	// Download defaults.
	DefaultDownloadDir         = "downloads"
	DefaultDownloadConcurrency = 3
)

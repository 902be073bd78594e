package config

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost             = "127.0.0.1"
	DefaultServerPort             = 8080
	DefaultReadTimeoutSeconds     = 10
	DefaultWriteTimeoutSeconds    = 30
	DefaultIdleTimeoutSeconds     = 60
	DefaultShutdownTimeoutSeconds = 15
	DefaultMaxUploadSizeMB        = 50

	// Storage defaults
	DefaultStoragePath = "composer.json"

	// Telegram defaults
	DefaultRequestTimeoutSeconds = 30

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
